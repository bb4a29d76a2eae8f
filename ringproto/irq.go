package ringproto

// IRQLine is the in-process stand-in for the physical interrupt line
// between CHIP and HOST. It is edge-coalesced and size-1-buffered, the
// same device the teacher's ring uses for producer/consumer wakeups,
// generalized here from a per-ring readiness channel into a line shared
// across both rings and all three interrupt bits — matching the real
// protocol, where one IRQ line carries RX_DATA_READY, TX_SPACE_AVAIL and
// ERROR together. It carries no information: a receiver must always
// re-read INT_STATUS after waking, tolerating a spurious signal.
type IRQLine struct {
	ch chan struct{}
}

// NewIRQLine returns an unsignalled line.
func NewIRQLine() *IRQLine {
	return &IRQLine{ch: make(chan struct{}, 1)}
}

// Signal wakes a parked receiver without blocking the raiser. Multiple
// signals before the receiver wakes coalesce into one wake.
func (l *IRQLine) Signal() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// C returns the channel to park on.
func (l *IRQLine) C() <-chan struct{} { return l.ch }
