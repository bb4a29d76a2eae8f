package link

import (
	"ringlink-go/errcode"
	"ringlink-go/ringproto"
)

// Peer is the CHIP side of the transport: it consumes the TX ring,
// produces into the RX ring, publishes its own TX-tail and RX-head
// indices to HOST, and raises interrupts on threshold crossings. It
// mirrors Driver with roles swapped.
type Peer struct {
	regs  ringproto.Registers
	tx    *ringproto.Ring
	rx    *ringproto.Ring
	cache ringproto.CacheOps
	fence ringproto.Fence
	irq   *ringproto.IRQLine

	txTail uint32 // local, CHIP-owned consumer index into tx
	rxHead uint32 // local, CHIP-owned producer index into rx

	txLowWatermark  int
	rxHighWatermark int

	// priorFree/priorUsed hold the last-observed level so watermark raises
	// trigger only on the rising edge, per the explicit prior-level
	// variable the source's ambiguity resolves to.
	priorFree uint32
	priorUsed uint32
}

// Init sets CHIP's local indices to zero and publishes them, mirroring
// chip_emulator_init. Either ordering of HOST's and CHIP's Init is
// acceptable provided no traffic occurs until both have completed.
func (p *Peer) Init() error {
	p.txTail = 0
	p.rxHead = 0
	p.regs.Write(ringproto.RegTXTailPtr, p.txTail)
	p.regs.Write(ringproto.RegRXHeadPtr, p.rxHead)
	return nil
}

// ConsumeTX drains what the TX ring currently makes available, mirroring
// drain_rx with roles swapped. It returns the number of frames consumed.
// A MalformedFrame stops the drain without advancing txTail, exactly as
// the HOST side stops draining on the same condition.
func (p *Peer) ConsumeTX() (n int, err error) {
	hostTXHead := p.regs.Read(ringproto.RegHostTXHeadPub)
	p.cache.Invalidate(0, p.tx.Size())
	p.fence.Acquire()

	tail := p.txTail
	for tail != hostTXHead {
		used := p.tx.Used(hostTXHead, tail)
		_, newTail, ok, ferr := ringproto.ReadFrame(p.tx, tail, used)
		if ferr != nil {
			err = ferr
			break
		}
		if !ok {
			break
		}
		tail = newTail
		n++
		hostTXHead = p.regs.Read(ringproto.RegHostTXHeadPub)
	}

	p.fence.Release()
	p.regs.Write(ringproto.RegTXTailPtr, tail)
	p.fence.Sync()
	p.txTail = tail

	free := p.tx.Free(hostTXHead, tail)
	if free >= uint32(p.txLowWatermark) && p.priorFree < uint32(p.txLowWatermark) {
		p.raiseInterrupt(ringproto.IntTXSpaceAvail)
	}
	p.priorFree = free

	return n, err
}

// ProduceRX writes payload as one frame into the RX ring, mirroring
// send_packet with roles swapped. It returns TooLarge or NoSpace under
// the same conditions as Driver.SendPacket, with no partial write either
// way.
func (p *Peer) ProduceRX(payload []byte) error {
	total := ringproto.LengthFieldSize + len(payload)
	if total > p.rx.Size() {
		return errcode.TooLarge
	}

	hostRXTail := p.regs.Read(ringproto.RegHostRXTailPub)
	free := p.rx.Free(p.rxHead, hostRXTail)
	if int(free) < total {
		return errcode.NoSpace
	}

	newHead, seg1, seg2 := ringproto.WriteFrame(p.rx, p.rxHead, payload)

	p.fence.Release()
	p.cache.Clean(seg1, seg2)
	p.regs.Write(ringproto.RegRXHeadPtr, newHead)
	p.fence.Sync()
	p.rxHead = newHead

	used := p.rx.Used(newHead, hostRXTail)
	if used >= uint32(p.rxHighWatermark) && p.priorUsed < uint32(p.rxHighWatermark) {
		p.raiseInterrupt(ringproto.IntRXDataReady)
	}
	p.priorUsed = used

	return nil
}

// RaiseError raises the ERROR interrupt for an opaque internal fault. It
// does not alter ring state; the HOST surfaces it advisory-only.
func (p *Peer) RaiseError() {
	p.raiseInterrupt(ringproto.IntError)
}

// raiseInterrupt ORs bit into INT_STATUS and wakes the interrupt line.
// The HOST-visible IRQ line asserts whenever INT_STATUS & INT_ENABLE is
// non-zero; clearing happens only via a HOST write to INT_CLEAR.
func (p *Peer) raiseInterrupt(bit uint32) {
	if ar, ok := p.regs.(ringproto.AtomicRegisterOps); ok {
		ar.RaiseBits(ringproto.RegIntStatus, bit)
	} else {
		cur := p.regs.Read(ringproto.RegIntStatus)
		p.regs.Write(ringproto.RegIntStatus, cur|bit)
	}
	if p.irq != nil {
		p.irq.Signal()
	}
}
