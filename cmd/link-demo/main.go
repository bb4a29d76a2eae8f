// Command link-demo runs an in-process HOST+CHIP simulation over the
// ring transport, the same shape as host_main_loop: a fixed couple of
// packets sent up front, then a few cycles alternating a HOST send and
// a CHIP-generated reply.
package main

import (
	"context"
	"time"

	"ringlink-go/bus"
	"ringlink-go/services/link"
	"ringlink-go/x/fmtx"
	"ringlink-go/x/strconvx"
	"ringlink-go/x/timex"
)

func main() {
	b := bus.NewBus(64)
	conn := b.NewConnection("link-demo")

	cfg := link.Config{
		BufferSize:      4096,
		TXLowWatermark:  1024,
		RXHighWatermark: 1024,
	}

	rx := conn.Subscribe(bus.T("link", "rx"))
	errs := conn.Subscribe(bus.T("link", "error"))
	go func() {
		for msg := range rx.Channel() {
			payload, _ := msg.Payload.([]byte)
			fmtx.Printf("HOST_RX: delivered %d bytes, first=0x%s\n",
				len(payload), strconvx.FormatUint(uint64(firstByte(payload)), 16))
		}
	}()
	go func() {
		for msg := range errs.Channel() {
			fmtx.Printf("HOST_ERR: %v at %d\n", msg.Payload, timex.NowMs())
		}
	}()

	handlers := link.Handlers{
		OnRX: func(payload []byte) {
			conn.Publish(conn.NewMessage(bus.T("link", "rx"), append([]byte(nil), payload...), false))
		},
		OnError: func(err error) {
			conn.Publish(conn.NewMessage(bus.T("link", "error"), err.Error(), false))
		},
	}

	driver, peer := link.NewLinked(cfg, handlers)
	must(driver.Init())
	must(peer.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.ServiceInterrupts(ctx)

	fmtx.Printf("\n--- HOST and CHIP Simulation Start ---\n")

	must(driver.SendPacket([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	must(driver.SendPacket([]byte("hello-chip")))

	for cycle := 1; cycle <= 3; cycle++ {
		fmtx.Printf("\n--- Simulation Cycle %d ---\n", cycle)

		n, err := peer.ConsumeTX()
		if err != nil {
			fmtx.Printf("CHIP_TX_ERR: %v\n", err)
		} else {
			fmtx.Printf("CHIP: consumed %d frame(s)\n", n)
		}

		reply := []byte("cycle-" + strconvx.Itoa(cycle))
		if err := peer.ProduceRX(reply); err != nil {
			fmtx.Printf("CHIP_RX_ERR: %v\n", err)
		}

		time.Sleep(5 * time.Millisecond)

		dynamic := make([]byte, cycle*4)
		for i := range dynamic {
			dynamic[i] = byte(i)
		}
		if err := driver.SendPacket(dynamic); err != nil {
			fmtx.Printf("HOST_TX_ERR: %v\n", err)
		}

		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(10 * time.Millisecond)
	fmtx.Printf("\n--- Simulation End ---\n")
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
