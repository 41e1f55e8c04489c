package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a bounded FIFO holding alert and system messages while
// the broker is unreachable. Telemetry samples are never buffered, a
// stale sample has no value. Not safe for concurrent use — caller must
// synchronize.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  bool // a message was dropped since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity}
}

// push appends a message, evicting the oldest one when full. The drop is
// logged once per offline stretch rather than per message.
func (r *ringBuffer) push(msg bufferedMsg) {
	if len(r.msgs) == r.capacity {
		if !r.dropped {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", r.capacity)
			r.dropped = true
		}
		copy(r.msgs, r.msgs[1:])
		r.msgs[len(r.msgs)-1] = msg
		return
	}
	r.msgs = append(r.msgs, msg)
}

// drainAll returns the buffered messages oldest first and empties the
// buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	out := r.msgs
	r.msgs = nil
	r.dropped = false
	return out
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
