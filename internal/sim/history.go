package sim

// history is a fixed-capacity FIFO of flow samples. Once full, pushing a
// new sample evicts the oldest. Not safe for concurrent use — the
// Simulator synchronizes.
type history struct {
	buf      []Sample
	capacity int
	head     int // next write position
	count    int
}

func newHistory(capacity int) *history {
	return &history{
		buf:      make([]Sample, capacity),
		capacity: capacity,
	}
}

func (h *history) push(s Sample) {
	h.buf[h.head] = s
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
	// At capacity the slot just written was the oldest sample, so the
	// push itself performed the eviction.
}

// samples returns a copy of the retained samples, oldest first.
func (h *history) samples() []Sample {
	if h.count == 0 {
		return nil
	}
	out := make([]Sample, h.count)
	start := (h.head - h.count + h.capacity) % h.capacity
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(start+i)%h.capacity]
	}
	return out
}

func (h *history) reset() {
	h.head = 0
	h.count = 0
}

func (h *history) len() int {
	return h.count
}
