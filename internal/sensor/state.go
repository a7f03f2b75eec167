package sensor

// ConnectionState is the sensor link's lifecycle state. Normal progression
// is Disconnected → Scanning → Connecting → Connected → Streaming; any state
// may transition to StateError on failure, and Error/Streaming return to
// Disconnected on explicit stop or unrecoverable disconnect.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateScanning
	StateConnecting
	StateConnected
	StateStreaming
	StateError
)

var stateNames = map[ConnectionState]string{
	StateDisconnected: "disconnected",
	StateScanning:     "scanning",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateStreaming:    "streaming",
	StateError:        "error",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
