package sensor

import "context"

// Characteristic names the link subscribes to on its transport.
const (
	CharHeartRate = "hr"
	CharPPI       = "ppi"
	CharBattery   = "battery"
)

// Transport carries characteristic payloads between the device (via its
// acquisition gateway) and the link. Implementations must deliver each
// characteristic's notifications in order; handlers are invoked from the
// transport's receive goroutine and must not block.
type Transport interface {
	// Connect establishes the transport. It is called once per connection
	// attempt; the link owns retry policy.
	Connect(ctx context.Context) error

	// Subscribe registers a notification handler for one characteristic.
	Subscribe(ctx context.Context, characteristic string, h func(data []byte)) error

	// Read performs a one-shot read of a characteristic (battery level).
	Read(ctx context.Context, characteristic string) ([]byte, error)

	// Close tears the transport down. Safe to call on a never-connected or
	// already-closed transport.
	Close() error
}
