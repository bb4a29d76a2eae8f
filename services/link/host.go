// Package link is the HOST driver and CHIP peer for the shared-memory
// ring transport, wired to the event bus for link-state and RX/error
// notification and to bus-delivered JSON configuration.
package link

import (
	"context"
	"sync"

	"ringlink-go/errcode"
	"ringlink-go/ringproto"
)

// Handlers are the callbacks invoked from the interrupt-dispatch path:
// the explicit sink capability the protocol calls for in place of ad-hoc
// logging, injected once at construction.
type Handlers struct {
	// OnRX is invoked once per delivered RX payload. The slice is owned by
	// the caller and only valid until OnRX returns.
	OnRX func(payload []byte)
	// OnError is invoked for a surfaced LinkError or MalformedFrame.
	OnError func(err error)
}

// Driver is the HOST side of the transport: it enqueues outbound packets
// into the TX ring, drains the RX ring on interrupt, and publishes its
// own TX-head and RX-tail indices to CHIP.
type Driver struct {
	regs  ringproto.Registers
	tx    *ringproto.Ring
	rx    *ringproto.Ring
	cache ringproto.CacheOps
	fence ringproto.Fence
	irq   *ringproto.IRQLine

	sendMu sync.Mutex // serializes the application context's SendPacket calls
	txHead uint32     // local, written only from the application context

	rxTail uint32 // local, written only from the interrupt-service context

	txSpace chan struct{} // size-1, signalled on a dispatched TX_SPACE_AVAIL

	handlers Handlers
}

// Init sets up indices, publishes them, and enables interrupts, mirroring
// host_chip_driver_init.
func (d *Driver) Init() error {
	d.regs.Write(ringproto.RegIntClear, 0xFFFFFFFF)

	d.txHead = 0
	d.rxTail = 0

	d.fence.Release()
	d.regs.Write(ringproto.RegHostTXHeadPub, d.txHead)
	d.regs.Write(ringproto.RegHostRXTailPub, d.rxTail)
	d.fence.Sync()

	d.regs.Write(ringproto.RegIntEnable,
		ringproto.IntRXDataReady|ringproto.IntTXSpaceAvail|ringproto.IntError)
	return nil
}

// SendPacket enqueues data into the TX ring. It never blocks: it returns
// TooLarge when the framed length (LengthFieldSize + len(data)) exceeds
// the ring's total size and NoSpace when that frame does not fit the
// currently free bytes, leaving ring state untouched either way.
func (d *Driver) SendPacket(data []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	total := ringproto.LengthFieldSize + len(data)
	if total > d.tx.Size() {
		return errcode.TooLarge
	}

	chipTXTail := d.regs.Read(ringproto.RegTXTailPtr)
	free := d.tx.Free(d.txHead, chipTXTail)
	if int(free) < total {
		return errcode.NoSpace
	}

	newHead, seg1, seg2 := ringproto.WriteFrame(d.tx, d.txHead, data)

	d.fence.Release()
	d.cache.Clean(seg1, seg2)
	d.regs.Write(ringproto.RegHostTXHeadPub, newHead)
	d.fence.Sync()

	d.txHead = newHead
	return nil
}

// drainRX is invoked from the interrupt-service context after observing
// RX_DATA_READY (or by polling). It never waits: it consumes whatever is
// available and returns.
func (d *Driver) drainRX() {
	chipRXHead := d.regs.Read(ringproto.RegRXHeadPtr)
	d.cache.Invalidate(0, d.rx.Size())
	d.fence.Acquire()

	tail := d.rxTail
	for tail != chipRXHead {
		used := d.rx.Used(chipRXHead, tail)
		payload, newTail, ok, err := ringproto.ReadFrame(d.rx, tail, used)
		if err != nil {
			if d.handlers.OnError != nil {
				d.handlers.OnError(err)
			}
			break
		}
		if !ok {
			break
		}
		if d.handlers.OnRX != nil {
			d.handlers.OnRX(payload)
		}
		tail = newTail
		chipRXHead = d.regs.Read(ringproto.RegRXHeadPtr)
	}

	d.fence.Release()
	d.regs.Write(ringproto.RegHostRXTailPub, tail)
	d.fence.Sync()
	d.rxTail = tail
}

// TXSpaceAvail signals when a TX_SPACE_AVAIL interrupt has been
// dispatched, for an upper layer choosing to park a blocked producer on
// it instead of retrying on a timer. A receive on this channel is only a
// hint: SendPacket must still be retried and may still return NoSpace.
func (d *Driver) TXSpaceAvail() <-chan struct{} { return d.txSpace }

// ServiceInterrupts parks on the shared interrupt line and dispatches
// until ctx is cancelled, modeled on the teacher's edge-aware,
// never-block-the-raiser worker loop: the line only carries a wake hint,
// so every wake re-reads INT_STATUS and tolerates a spurious signal with
// nothing enabled.
func (d *Driver) ServiceInterrupts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.irq.C():
			d.dispatch()
		}
	}
}

// dispatch is the HOST interrupt dispatcher (§4.4): clear each enabled,
// pending bit before invoking its action, so a coincident re-assertion
// isn't lost.
func (d *Driver) dispatch() {
	status := d.regs.Read(ringproto.RegIntStatus)
	enable := d.regs.Read(ringproto.RegIntEnable)
	pending := status & enable
	if pending == 0 {
		return // spurious wake; nothing enabled is set
	}

	if pending&ringproto.IntRXDataReady != 0 {
		d.regs.Write(ringproto.RegIntClear, ringproto.IntRXDataReady)
		d.drainRX()
	}
	if pending&ringproto.IntTXSpaceAvail != 0 {
		d.regs.Write(ringproto.RegIntClear, ringproto.IntTXSpaceAvail)
		select {
		case d.txSpace <- struct{}{}:
		default:
		}
	}
	if pending&ringproto.IntError != 0 {
		d.regs.Write(ringproto.RegIntClear, ringproto.IntError)
		if d.handlers.OnError != nil {
			d.handlers.OnError(errcode.LinkError)
		}
	}
}
