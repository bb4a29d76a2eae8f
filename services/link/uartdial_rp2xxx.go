//go:build rp2040 || rp2350

package link

import (
	"context"
	"io"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// rp2UARTConn adapts a uartx.UART, configured per UARTConfig, to
// io.ReadWriteCloser, the same shape the teacher's rp2 platform factory
// wraps around uartx.UART for its own HAL UART port.
type rp2UARTConn struct {
	u *uartx.UART
}

func (c *rp2UARTConn) Read(p []byte) (int, error)  { return c.u.Read(p) }
func (c *rp2UARTConn) Write(p []byte) (int, error) { return c.u.Write(p) }
func (c *rp2UARTConn) Close() error                { return nil } // uartx.UART has no Close

func init() {
	UARTDial = rp2xxxUARTDial
}

// rp2xxxUARTDial opens uartx.UART0 at the configured baud and pins,
// RX and TX pin numbers map straight to machine.Pin(n), matching the
// teacher's DefaultPinFactory numbering for the RP2 family.
func rp2xxxUARTDial(ctx context.Context, cfg UARTConfig) (io.ReadWriteCloser, error) {
	baud := uint32(cfg.Baud)
	if baud == 0 {
		baud = 115200
	}

	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(cfg.TxPin),
		RX:       machine.Pin(cfg.RxPin),
	}); err != nil {
		return nil, err
	}
	return &rp2UARTConn{u: u}, nil
}
