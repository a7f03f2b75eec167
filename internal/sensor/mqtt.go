package sensor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

// GatewayTransport is the Transport over the MQTT link the acquisition
// gateway publishes characteristic payloads to. Each characteristic maps to
// one topic under cogniflow/gateway/<device>/; the battery topic is expected
// to be retained so a one-shot Read resolves immediately.
type GatewayTransport struct {
	gatewayURL string
	deviceID   string
	clientID   string

	mu     sync.Mutex
	conn   net.Conn
	client *paho.Client
}

// NewGatewayTransport returns an unconnected transport for the given broker
// URL (tcp://host:port) and device.
func NewGatewayTransport(gatewayURL, deviceID string) *GatewayTransport {
	return &GatewayTransport{
		gatewayURL: gatewayURL,
		deviceID:   deviceID,
		clientID:   "cogniflowd-" + deviceID,
	}
}

func (t *GatewayTransport) topic(characteristic string) string {
	return fmt.Sprintf("cogniflow/gateway/%s/%s", t.deviceID, characteristic)
}

// Connect dials the broker and performs the MQTT connect handshake. One call
// is one attempt; the link drives the retry policy.
func (t *GatewayTransport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.gatewayURL)
	if err != nil {
		return fmt.Errorf("sensor: parse gateway url: %w", err)
	}
	if u.Scheme != "tcp" {
		return fmt.Errorf("sensor: unsupported gateway scheme %q", u.Scheme)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return fmt.Errorf("sensor: dial gateway: %w", err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: t.clientID,
	})

	ca, err := client.Connect(ctx, &paho.Connect{
		ClientID:   t.clientID,
		KeepAlive:  30,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("sensor: mqtt connect: %w", err)
	}
	if ca != nil && ca.ReasonCode != 0 {
		conn.Close()
		return fmt.Errorf("sensor: mqtt connect rejected: reason %d", ca.ReasonCode)
	}

	t.mu.Lock()
	t.conn = conn
	t.client = client
	t.mu.Unlock()
	return nil
}

// Subscribe registers h for the characteristic's topic and subscribes at
// QoS 0; sample loss on a flaky link is recovered by the next frame, so
// there is no point queueing stale intervals.
func (t *GatewayTransport) Subscribe(ctx context.Context, characteristic string, h func(data []byte)) error {
	client := t.currentClient()
	if client == nil {
		return fmt.Errorf("sensor: transport not connected")
	}

	topic := t.topic(characteristic)
	client.AddOnPublishReceived(func(pr paho.PublishReceived) (bool, error) {
		if pr.Packet.Topic != topic {
			return false, nil
		}
		h(pr.Packet.Payload)
		return true, nil
	})

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
	}); err != nil {
		return fmt.Errorf("sensor: subscribe %s: %w", topic, err)
	}
	return nil
}

// Read performs a one-shot read by subscribing to the characteristic's
// (retained) topic and waiting for the first payload.
func (t *GatewayTransport) Read(ctx context.Context, characteristic string) ([]byte, error) {
	client := t.currentClient()
	if client == nil {
		return nil, fmt.Errorf("sensor: transport not connected")
	}

	topic := t.topic(characteristic)
	payloadC := make(chan []byte, 1)
	client.AddOnPublishReceived(func(pr paho.PublishReceived) (bool, error) {
		if pr.Packet.Topic != topic {
			return false, nil
		}
		select {
		case payloadC <- pr.Packet.Payload:
		default:
		}
		return true, nil
	})

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
	}); err != nil {
		return nil, fmt.Errorf("sensor: subscribe %s: %w", topic, err)
	}
	defer func() {
		_, _ = client.Unsubscribe(context.WithoutCancel(ctx), &paho.Unsubscribe{
			Topics: []string{topic},
		})
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-payloadC:
		return payload, nil
	}
}

// Close disconnects from the broker. Safe on a never-connected transport.
func (t *GatewayTransport) Close() error {
	t.mu.Lock()
	client := t.client
	conn := t.conn
	t.client = nil
	t.conn = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	err := client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	if conn != nil {
		conn.Close()
	}
	return err
}

func (t *GatewayTransport) currentClient() *paho.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}
