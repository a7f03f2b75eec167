package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/cogniflow/cogniflow/internal/pipeline"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
	defaultBufferSize = 256
)

// Publisher buffers pipeline results and ships them to the results topic
// over MQTT. Publish() is non-blocking; when the buffer is full the oldest
// result is evicted. Run() must be called in a goroutine to drain the
// buffer and handle reconnection.
type Publisher struct {
	brokerURL string
	topic     string
	buf       chan pipeline.Result
	dialFn    dialFunc // injectable for tests
}

// dialFunc opens a connected MQTT client. Abstracted so tests can point the
// publisher at an in-process broker.
type dialFunc func(ctx context.Context) (*paho.Client, net.Conn, error)

// New creates a Publisher for the given broker URL and topic.
func New(brokerURL, topic string) *Publisher {
	p := &Publisher{
		brokerURL: brokerURL,
		topic:     topic,
		buf:       make(chan pipeline.Result, defaultBufferSize),
	}
	p.dialFn = p.defaultDial
	return p
}

// Publish enqueues a result. If the buffer is full the oldest entry is
// evicted to make room for the newest.
func (p *Publisher) Publish(res pipeline.Result) {
	select {
	case p.buf <- res:
	default:
		select {
		case <-p.buf:
			slog.Warn("publish: buffer full, evicted oldest result",
				"buffer_cap", cap(p.buf))
		default:
		}
		p.buf <- res
	}
}

// Run drains the buffer, publishing results to the broker. It reconnects
// with truncated exponential backoff when the connection is lost, and
// blocks until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		client, conn, err := p.dialFn(ctx)
		if err != nil {
			wait := bo.next()
			slog.Error("publish: connect failed, will retry",
				"broker", p.brokerURL, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("publish: connected", "broker", p.brokerURL, "topic", p.topic)
		bo.reset()

		err = p.drain(ctx, client)
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		if conn != nil {
			conn.Close()
		}

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("publish: connection lost, will reconnect",
			"broker", p.brokerURL, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain publishes buffered results until the connection fails or ctx is
// cancelled.
func (p *Publisher) drain(ctx context.Context, client *paho.Client) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case res := <-p.buf:
			payload, err := json.Marshal(res)
			if err != nil {
				// A result that cannot marshal never will; discard it.
				slog.Error("publish: marshal result failed, discarding", "err", err)
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			_, err = client.Publish(sendCtx, &paho.Publish{
				Topic:   p.topic,
				QoS:     1,
				Payload: payload,
			})
			cancel()

			if err != nil {
				// Requeue if there is room; otherwise the next tick's result
				// supersedes this one anyway.
				select {
				case p.buf <- res:
				default:
				}
				return fmt.Errorf("publish: %w", err)
			}

			slog.Debug("publish: result delivered", "topic", p.topic)
		}
	}
}

// defaultDial opens a TCP connection and completes the MQTT handshake.
func (p *Publisher) defaultDial(ctx context.Context) (*paho.Client, net.Conn, error) {
	u, err := url.Parse(p.brokerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse broker url: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: "cogniflowd-publisher",
	})
	ca, err := client.Connect(ctx, &paho.Connect{
		ClientID:   "cogniflowd-publisher",
		KeepAlive:  30,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("mqtt connect: %w", err)
	}
	if ca != nil && ca.ReasonCode != 0 {
		conn.Close()
		return nil, nil, fmt.Errorf("mqtt connect rejected: reason %d", ca.ReasonCode)
	}
	return client, conn, nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
