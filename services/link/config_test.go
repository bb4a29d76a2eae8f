package link

import "testing"

func TestDecodeConfig_Defaults(t *testing.T) {
	cfg, err := decodeConfig(nil)
	if err != nil {
		t.Fatalf("decodeConfig(nil): %v", err)
	}
	want := defaultConfig()
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestDecodeConfig_Overrides(t *testing.T) {
	raw := []byte(`{
		"buffer_size": 8192,
		"tx_low_watermark": 2048,
		"rx_high_watermark": 3000,
		"transport": {
			"type": "uart",
			"uart": {"baud": 115200, "rx_pin": 1, "tx_pin": 0, "read_timeout_ms": 50, "write_timeout_ms": 50}
		}
	}`)

	cfg, err := decodeConfig(raw)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.BufferSize != 8192 {
		t.Errorf("BufferSize = %d, want 8192", cfg.BufferSize)
	}
	if cfg.TXLowWatermark != 2048 {
		t.Errorf("TXLowWatermark = %d, want 2048", cfg.TXLowWatermark)
	}
	if cfg.RXHighWatermark != 3000 {
		t.Errorf("RXHighWatermark = %d, want 3000", cfg.RXHighWatermark)
	}
	if cfg.Transport.Type != "uart" {
		t.Errorf("Transport.Type = %q, want uart", cfg.Transport.Type)
	}
	if cfg.Transport.UART == nil || cfg.Transport.UART.Baud != 115200 {
		t.Fatalf("Transport.UART = %+v", cfg.Transport.UART)
	}
}

func TestDecodeConfig_ClampsWatermarkToCapacity(t *testing.T) {
	raw := []byte(`{"buffer_size": 16, "tx_low_watermark": 9000, "rx_high_watermark": 0}`)

	cfg, err := decodeConfig(raw)
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.TXLowWatermark != 14 { // usableCap=15, clamp ceiling is usableCap-1
		t.Errorf("TXLowWatermark = %d, want 14", cfg.TXLowWatermark)
	}
	if cfg.RXHighWatermark != 1 {
		t.Errorf("RXHighWatermark = %d, want 1", cfg.RXHighWatermark)
	}
}

func TestDecodeConfig_RejectsNonObject(t *testing.T) {
	if _, err := decodeConfig([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

func TestDecodeConfig_RejectsUnsupportedPayloadType(t *testing.T) {
	if _, err := decodeConfig(42); err == nil {
		t.Fatal("expected error for unsupported payload type")
	}
}
