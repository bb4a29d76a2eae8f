package link

import (
	"errors"

	"ringlink-go/ringproto"
	"ringlink-go/x/mathx"
	"ringlink-go/x/strx"

	"github.com/andreyvit/tinyjson"
)

// Config is the bus-delivered configuration for a link, decoded with
// tinyjson instead of encoding/json so the MCU build avoids reflection.
// Unset fields fall back to the ring's default profile.
type Config struct {
	BufferSize     int
	TXLowWatermark int
	RXHighWatermark int
	Transport      TransportConfig
}

// TransportConfig selects and parameterizes the transport carrying
// register pokes; ring bytes always stay in local memory. An empty Type
// (or "sim") selects the in-process simulated transport
// (services/link/service.go wires a SimRegisters + two in-memory Rings
// directly in that case); "uart" tunnels the register file over a UART
// link; any other name is rejected with an unknown_transport state.
type TransportConfig struct {
	Type string
	UART *UARTConfig
}

// UARTConfig mirrors the teacher's bridge.UARTConfig: enough for an
// injected platform dialler to open the physical UART.
type UARTConfig struct {
	Baud           int
	RxPin          int
	TxPin          int
	ReadTimeoutMS  int
	WriteTimeoutMS int
}

// defaultConfig returns a Config using the protocol's default profile.
func defaultConfig() Config {
	return Config{
		BufferSize:      ringproto.DefaultBufferSize,
		TXLowWatermark:  ringproto.DefaultTXLowWatermark,
		RXHighWatermark: ringproto.DefaultRXHighWatermark,
	}
}

// decodeConfig parses a bus payload (raw JSON bytes, a JSON string, or an
// already-decoded map[string]any) into Config, filling unset numeric
// fields from the default profile (except that watermarks left unset
// alongside an overridden buffer_size are scaled to it with
// ringproto.DefaultWatermarkFor) and clamping watermarks to what the
// resulting buffer size can actually cross.
func decodeConfig(payload any) (Config, error) {
	cfg := defaultConfig()

	raw, err := asRawJSON(payload)
	if err != nil {
		return cfg, err
	}
	if raw == nil {
		return cfg, nil
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return cfg, errors.New("link: config payload is not a JSON object")
	}

	bufferSizeOverridden := false
	if v, ok := asInt(m["buffer_size"]); ok {
		cfg.BufferSize = v
		bufferSizeOverridden = true
	}

	_, txOverridden := asInt(m["tx_low_watermark"])
	_, rxOverridden := asInt(m["rx_high_watermark"])
	if bufferSizeOverridden && !txOverridden {
		cfg.TXLowWatermark = ringproto.DefaultWatermarkFor(cfg.BufferSize)
	}
	if bufferSizeOverridden && !rxOverridden {
		cfg.RXHighWatermark = ringproto.DefaultWatermarkFor(cfg.BufferSize)
	}

	if v, ok := asInt(m["tx_low_watermark"]); ok {
		cfg.TXLowWatermark = v
	}
	if v, ok := asInt(m["rx_high_watermark"]); ok {
		cfg.RXHighWatermark = v
	}
	if t, ok := m["transport"].(map[string]any); ok {
		cfg.Transport.Type = strx.Coalesce(asString(t["type"]), "")
		if u, ok := t["uart"].(map[string]any); ok {
			uc := UARTConfig{}
			if v, ok := asInt(u["baud"]); ok {
				uc.Baud = v
			}
			if v, ok := asInt(u["rx_pin"]); ok {
				uc.RxPin = v
			}
			if v, ok := asInt(u["tx_pin"]); ok {
				uc.TxPin = v
			}
			if v, ok := asInt(u["read_timeout_ms"]); ok {
				uc.ReadTimeoutMS = v
			}
			if v, ok := asInt(u["write_timeout_ms"]); ok {
				uc.WriteTimeoutMS = v
			}
			cfg.Transport.UART = &uc
		}
	}

	usableCap := cfg.BufferSize - 1
	cfg.TXLowWatermark = mathx.Clamp(cfg.TXLowWatermark, 1, usableCap-1)
	cfg.RXHighWatermark = mathx.Clamp(cfg.RXHighWatermark, 1, usableCap-1)
	return cfg, nil
}

func asRawJSON(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("link: unsupported config payload type")
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
