package link

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ringlink-go/ringproto"
)

// UARTDial is injected by platform code, the same idiom the teacher uses
// for its bridge transport: it must open and return an
// io.ReadWriteCloser over the configured UART. A platform build (backed
// by github.com/jangala-dev/tinygo-uartx) wires the real dialler; this
// package never imports machine-specific code directly.
var UARTDial func(ctx context.Context, cfg UARTConfig) (io.ReadWriteCloser, error)

var errNoDial = errors.New("link: UARTDial not implemented")

// Minimal request/response framing for tunnelling register access over a
// serial link, built the same way the teacher's bridge framed its
// heartbeat/pub-sub frames: a 1-byte op, a 2-byte big-endian length, and
// a payload.
const (
	uartOpRegRead  byte = 0x01
	uartOpRegWrite byte = 0x02
)

type uartFrame struct {
	op      byte
	payload []byte
}

type uartFramedReader struct{ r io.Reader }
type uartFramedWriter struct{ w io.Writer }

func (fr *uartFramedReader) readFrame() (uartFrame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return uartFrame{}, err
	}
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return uartFrame{}, err
		}
	}
	return uartFrame{op: hdr[0], payload: buf}, nil
}

func (fw *uartFramedWriter) writeFrame(f uartFrame) error {
	if len(f.payload) > 0xFFFF {
		return fmt.Errorf("link: uart frame too large: %d", len(f.payload))
	}
	hdr := []byte{f.op, byte(len(f.payload) >> 8), byte(len(f.payload))}
	if _, err := fw.w.Write(hdr); err != nil {
		return err
	}
	if len(f.payload) > 0 {
		_, err := fw.w.Write(f.payload)
		return err
	}
	return nil
}

// uartRegisters tunnels Registers.Read/Write as request/response frames
// over a UART link, for the split-process deployment where the register
// file physically lives on the remote peer.
type uartRegisters struct {
	mu sync.Mutex
	rd *uartFramedReader
	wr *uartFramedWriter
}

func newUARTRegisters(rwc io.ReadWriteCloser) *uartRegisters {
	return &uartRegisters{rd: &uartFramedReader{r: rwc}, wr: &uartFramedWriter{w: rwc}}
}

func (u *uartRegisters) Read(offset uint32) uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()

	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, offset)
	if err := u.wr.writeFrame(uartFrame{op: uartOpRegRead, payload: req}); err != nil {
		return 0
	}
	resp, err := u.rd.readFrame()
	if err != nil || len(resp.payload) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(resp.payload)
}

func (u *uartRegisters) Write(offset uint32, val uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()

	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:4], offset)
	binary.LittleEndian.PutUint32(req[4:8], val)
	if err := u.wr.writeFrame(uartFrame{op: uartOpRegWrite, payload: req}); err != nil {
		return
	}
	_, _ = u.rd.readFrame() // ack, value discarded
}

// dialUART opens the configured UART and returns a Registers backed by
// it. Tunnelling the ring bytes themselves (rather than just the
// register file) is left to a future RemoteRing once a real deployment
// needs it; today's split-process path exercises the register-file
// tunnel, which is where the protocol's interesting ordering lives.
func dialUART(ctx context.Context, cfg Config) (*uartRegisters, io.Closer, error) {
	if cfg.Transport.UART == nil {
		return nil, nil, errors.New("link: uart transport requires uart config")
	}
	if UARTDial == nil {
		return nil, nil, errNoDial
	}
	rwc, err := UARTDial(ctx, *cfg.Transport.UART)
	if err != nil {
		return nil, nil, err
	}
	return newUARTRegisters(rwc), rwc, nil
}

// pollInterrupts stands in for the physical IRQ line on the split-process
// transport: there is no in-band wake, so it periodically re-reads
// INT_STATUS and signals irq whenever a bit is pending, leaving dispatch
// to clear it. A real platform build replaces this with a GPIO edge
// interrupt wired straight to irq.Signal.
func pollInterrupts(ctx context.Context, regs *uartRegisters, irq *ringproto.IRQLine) {
	const period = 10 * time.Millisecond
	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if regs.Read(ringproto.RegIntStatus) != 0 {
				irq.Signal()
			}
		}
	}
}
