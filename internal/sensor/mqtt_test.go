package sensor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"
)

const mochiTCPPort = 18831

// startBroker runs an in-process MQTT broker for the duration of the test.
func startBroker(t *testing.T) string {
	t.Helper()

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: fmt.Sprintf("localhost:%d", mochiTCPPort),
	})
	require.NoError(t, server.AddListener(tcp))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { server.Close() })

	return fmt.Sprintf("tcp://localhost:%d", mochiTCPPort)
}

// gatewayPublish connects a throwaway client and publishes one payload.
func gatewayPublish(t *testing.T, brokerURL, topic string, payload []byte, retain bool) {
	t.Helper()
	ctx := context.Background()

	u, err := url.Parse(brokerURL)
	require.NoError(t, err)
	conn, err := net.Dial("tcp", u.Host)
	require.NoError(t, err)

	client := paho.NewClient(paho.ClientConfig{Conn: conn, ClientID: "test-gateway"})
	_, err = client.Connect(ctx, &paho.Connect{
		ClientID: "test-gateway", KeepAlive: 30, CleanStart: true,
	})
	require.NoError(t, err)
	defer func() {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		conn.Close()
	}()

	_, err = client.Publish(ctx, &paho.Publish{
		Topic: topic, QoS: 1, Retain: retain, Payload: payload,
	})
	require.NoError(t, err)
}

func TestGatewayTransport_SubscribeDeliversFrames(t *testing.T) {
	brokerURL := startBroker(t)

	tr := NewGatewayTransport(brokerURL, "test-device")
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })

	frames := make(chan []byte, 1)
	require.NoError(t, tr.Subscribe(context.Background(), CharPPI, func(data []byte) {
		frames <- data
	}))

	want := ppiFrame([6]byte{75, 0x20, 0x03, 10, 0, flagSkinContact})
	gatewayPublish(t, brokerURL, "cogniflow/gateway/test-device/ppi", want, false)

	select {
	case got := <-frames:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestGatewayTransport_SubscriptionsAreIndependent(t *testing.T) {
	brokerURL := startBroker(t)

	tr := NewGatewayTransport(brokerURL, "test-device")
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })

	hrFrames := make(chan []byte, 1)
	ppiFrames := make(chan []byte, 1)
	require.NoError(t, tr.Subscribe(context.Background(), CharHeartRate, func(d []byte) { hrFrames <- d }))
	require.NoError(t, tr.Subscribe(context.Background(), CharPPI, func(d []byte) { ppiFrames <- d }))

	gatewayPublish(t, brokerURL, "cogniflow/gateway/test-device/hr", []byte{0x00, 72}, false)

	select {
	case got := <-hrFrames:
		require.Equal(t, []byte{0x00, 72}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("hr frame never arrived")
	}
	select {
	case <-ppiFrames:
		t.Fatal("hr payload leaked into the ppi handler")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGatewayTransport_ReadRetained(t *testing.T) {
	brokerURL := startBroker(t)

	// The gateway publishes battery level retained; a later one-shot Read
	// must resolve from the retained message.
	gatewayPublish(t, brokerURL, "cogniflow/gateway/test-device/battery", []byte{87}, true)

	tr := NewGatewayTransport(brokerURL, "test-device")
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := tr.Read(ctx, CharBattery)
	require.NoError(t, err)
	require.Equal(t, []byte{87}, data)
}

func TestGatewayTransport_ReadTimesOutWithoutData(t *testing.T) {
	brokerURL := startBroker(t)

	tr := NewGatewayTransport(brokerURL, "test-device")
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := tr.Read(ctx, CharBattery)
	require.Error(t, err)
}

func TestGatewayTransport_NotConnected(t *testing.T) {
	tr := NewGatewayTransport("tcp://localhost:1", "test-device")

	err := tr.Subscribe(context.Background(), CharPPI, func([]byte) {})
	require.Error(t, err)
	_, err = tr.Read(context.Background(), CharBattery)
	require.Error(t, err)
	require.NoError(t, tr.Close())
}
