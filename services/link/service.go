package link

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"ringlink-go/bus"
	"ringlink-go/errcode"
	"ringlink-go/ringproto"
)

var (
	configTopic = bus.T("config", "link")
	stateTopic  = bus.T("link", "state")
	rxTopic     = bus.T("link", "rx")
	errTopic    = bus.T("link", "error")
)

// Service owns the link's lifecycle on the bus: it subscribes to
// configuration, tears down and restands up the transport on every
// change, and republishes RX payloads and errors, the same
// subscribe-reconfigure-supervise shape the teacher's bridge service
// uses for its own transport.
type Service struct {
	conn *bus.Connection

	mu        sync.Mutex
	curCancel context.CancelFunc
	curCfg    Config

	active atomic.Value // holds *Driver, the live HOST side, or nil
}

// Start runs the service until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	s.conn = conn
	s.active.Store((*Driver)(nil))
	s.run(ctx)
}

// Active returns the currently live Driver, or nil if no link is up.
// Callers that want to push packets grab this rather than routing
// every send through the bus.
func (s *Service) Active() *Driver {
	d, _ := s.active.Load().(*Driver)
	return d
}

func (s *Service) run(ctx context.Context) {
	sub := s.conn.Subscribe(configTopic)
	defer sub.Unsubscribe()

	s.reconfigure(ctx, defaultConfig())

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "bad_config", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	cancel := s.curCancel
	s.curCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.active.Store((*Driver)(nil))
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()

	runCtx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curCancel = cancel
	s.curCfg = cfg
	s.mu.Unlock()

	go s.runLink(runCtx, cfg)
}

// runLink brings up one link instance for cfg and runs it until runCtx
// is cancelled, publishing state transitions along the way.
func (s *Service) runLink(ctx context.Context, cfg Config) {
	s.publishState("info", "starting", nil)

	handlers := Handlers{
		OnRX: func(payload []byte) {
			cp := make([]byte, len(payload))
			copy(cp, payload)
			s.conn.Publish(s.conn.NewMessage(rxTopic, cp, false))
		},
		OnError: func(err error) {
			s.publishState("error", "link_error", err)
		},
	}

	switch cfg.Transport.Type {
	case "", "sim":
		s.runSim(ctx, cfg, handlers)
	case "uart":
		s.runUART(ctx, cfg, handlers)
	default:
		s.publishState("error", "unknown_transport", errcode.InvalidParams)
	}
}

// runSim brings up the in-process HOST+CHIP simulation: both sides of
// NewLinked share one register file and pair of rings directly, with no
// transport in between.
func (s *Service) runSim(ctx context.Context, cfg Config, h Handlers) {
	driver, peer := NewLinked(cfg, h)
	if err := driver.Init(); err != nil {
		s.publishState("error", "init_failed", err)
		return
	}
	if err := peer.Init(); err != nil {
		s.publishState("error", "init_failed", err)
		return
	}

	s.active.Store(driver)
	s.publishState("info", "up", nil)

	go driver.ServiceInterrupts(ctx)
	<-ctx.Done()
	s.publishState("info", "down", nil)
}

// runUART dials the configured UART repeatedly with backoff, tunnelling
// the register file over it, until ctx is cancelled. This is the
// split-process deployment shape: CHIP's register file lives on the far
// end of the wire, while both rings are allocated in this process; ring
// bytes are not tunnelled.
func (s *Service) runUART(ctx context.Context, cfg Config, h Handlers) {
	backoff := backoffSeq(500*time.Millisecond, 30*time.Second)

	for {
		if ctx.Err() != nil {
			return
		}

		regs, closer, err := dialUART(ctx, cfg)
		if err != nil {
			s.publishState("error", "dial_failed", err)
			if !sleep(ctx, backoff()) {
				return
			}
			continue
		}

		s.handleUARTLink(ctx, cfg, regs, closer, h)
	}
}

func (s *Service) handleUARTLink(ctx context.Context, cfg Config, regs *uartRegisters, closer io.Closer, h Handlers) {
	defer closer.Close()

	tx := ringproto.NewRing(cfg.BufferSize)
	rx := ringproto.NewRing(cfg.BufferSize)
	irq := ringproto.NewIRQLine()
	go pollInterrupts(ctx, regs, irq)

	driver := &Driver{
		regs:     regs,
		tx:       tx,
		rx:       rx,
		cache:    ringproto.NoCacheOps{},
		irq:      irq,
		txSpace:  make(chan struct{}, 1),
		handlers: h,
	}
	if err := driver.Init(); err != nil {
		s.publishState("error", "init_failed", err)
		return
	}

	s.active.Store(driver)
	s.publishState("info", "up", nil)
	driver.ServiceInterrupts(ctx)
	s.active.Store((*Driver)(nil))
	s.publishState("info", "down", nil)
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status}
	if err != nil {
		payload["error"] = errcode.Of(err).Error()
	}
	s.conn.Publish(s.conn.NewMessage(stateTopic, payload, true))
	if level == "error" && err != nil {
		s.conn.Publish(s.conn.NewMessage(errTopic, payload, false))
	}
}

// backoffSeq returns a function producing successive delays starting at
// min, doubling up to max, with jitter, the same growth shape the
// teacher's bridge uses for its own redial loop.
func backoffSeq(min, max time.Duration) func() time.Duration {
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		jitter := time.Duration(rand.Int63n(int64(d) / 4 + 1))
		return d + jitter
	}
}

// sleep waits for d or ctx cancellation, reporting which occurred.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
