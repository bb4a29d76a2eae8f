package link

import "ringlink-go/ringproto"

// NewLinked constructs a HOST Driver and CHIP Peer sharing one in-process
// register file and two rings — the in-process simulation deployment
// shape. Either side's Init may run first; no traffic may occur until
// both have completed.
func NewLinked(cfg Config, h Handlers) (*Driver, *Peer) {
	regs := ringproto.NewSimRegisters()
	tx := ringproto.NewRing(cfg.BufferSize)
	rx := ringproto.NewRing(cfg.BufferSize)
	irq := ringproto.NewIRQLine()
	cache := ringproto.NoCacheOps{}

	d := &Driver{
		regs:     regs,
		tx:       tx,
		rx:       rx,
		cache:    cache,
		irq:      irq,
		txSpace:  make(chan struct{}, 1),
		handlers: h,
	}
	p := &Peer{
		regs:            regs,
		tx:              tx,
		rx:              rx,
		cache:           cache,
		irq:             irq,
		txLowWatermark:  cfg.TXLowWatermark,
		rxHighWatermark: cfg.RXHighWatermark,
	}
	return d, p
}
