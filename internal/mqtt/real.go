package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/flow-monitor/internal/sim"
)

// DefaultBufferCapacity bounds the offline replay buffer.
const DefaultBufferCapacity = 64

// RealPublisher publishes to an actual MQTT broker. Alert and system
// messages published while disconnected are held in a bounded buffer
// and replayed when the connection comes back.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
// bufferCap bounds the offline replay buffer; values below 1 fall back
// to DefaultBufferCapacity.
func NewRealPublisher(broker string, bufferCap int) (*RealPublisher, error) {
	if bufferCap < 1 {
		bufferCap = DefaultBufferCapacity
	}
	p := &RealPublisher{
		pending: newRingBuffer(bufferCap),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("flow-monitor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			p.replayPending()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishSample sends a flow sample to the broker. Samples are not
// buffered while disconnected.
func (p *RealPublisher) PublishSample(snap sim.Snapshot, at time.Time) error {
	payload, err := FormatTelemetryPayload(snap, at)
	if err != nil {
		return fmt.Errorf("format telemetry payload: %w", err)
	}

	if !p.client.IsConnected() {
		return fmt.Errorf("not connected, sample dropped")
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(TopicTelemetry, 0, false, payload)
}

// PublishAlert sends a leak detector event to the broker, buffering it
// for replay if the connection is down.
func (p *RealPublisher) PublishAlert(event sim.Event) error {
	payload, err := FormatAlertPayload(event)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}

	// QoS 1 (at-least-once), retained so late subscribers see the
	// current alert state.
	if !p.client.IsConnected() {
		p.buffer(bufferedMsg{topic: TopicAlerts, payload: payload, qos: 1, retained: true})
		return nil
	}
	return p.publish(TopicAlerts, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the broker, buffering
// it for replay if the connection is down.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	if !p.client.IsConnected() {
		p.buffer(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
		return nil
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) buffer(msg bufferedMsg) {
	p.mu.Lock()
	p.pending.push(msg)
	p.mu.Unlock()
}

// replayPending drains the offline buffer on (re)connect. Runs on the
// paho callback goroutine.
func (p *RealPublisher) replayPending() {
	p.mu.Lock()
	msgs := p.pending.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	for _, m := range msgs {
		if err := p.publish(m.topic, m.qos, m.retained, m.payload); err != nil {
			log.Printf("mqtt: replay error: %v", err)
		}
	}
}
