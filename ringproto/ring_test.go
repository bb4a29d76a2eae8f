package ringproto

import (
	"bytes"
	"testing"
)

func TestUsedFree(t *testing.T) {
	r := NewRing(16)
	cases := []struct {
		head, tail uint32
		used, free uint32
	}{
		{0, 0, 0, 15},
		{5, 0, 5, 10},
		{0, 5, 11, 4},
		{15, 0, 15, 0},
		{0, 1, 15, 0},
	}
	for _, c := range cases {
		if got := r.Used(c.head, c.tail); got != c.used {
			t.Errorf("Used(%d,%d) = %d, want %d", c.head, c.tail, got, c.used)
		}
		if got := r.Free(c.head, c.tail); got != c.free {
			t.Errorf("Free(%d,%d) = %d, want %d", c.head, c.tail, got, c.free)
		}
	}
}

func TestWriteReadAtNoWrap(t *testing.T) {
	r := NewRing(16)
	data := []byte{1, 2, 3, 4}
	newOff, seg1, seg2 := r.WriteAt(2, data)
	if newOff != 6 {
		t.Fatalf("newOff = %d, want 6", newOff)
	}
	if seg2 != nil {
		t.Fatalf("expected no wrap, got seg2 = %v", seg2)
	}
	if !bytes.Equal(seg1, data) {
		t.Fatalf("seg1 = %v, want %v", seg1, data)
	}
	p1, p2 := r.ReadAt(2, 4)
	if p2 != nil || !bytes.Equal(p1, data) {
		t.Fatalf("ReadAt = %v/%v, want %v/nil", p1, p2, data)
	}
}

func TestWriteReadAtWrap(t *testing.T) {
	r := NewRing(16)
	data := []byte{1, 2, 3, 4, 5, 6}
	newOff, seg1, seg2 := r.WriteAt(14, data) // wraps at 16
	if newOff != 4 {
		t.Fatalf("newOff = %d, want 4", newOff)
	}
	if len(seg1) != 2 || len(seg2) != 4 {
		t.Fatalf("seg1/seg2 lengths = %d/%d, want 2/4", len(seg1), len(seg2))
	}
	p1, p2 := r.ReadAt(14, 6)
	got := append(append([]byte{}, p1...), p2...)
	if !bytes.Equal(got, data) {
		t.Fatalf("read back %v, want %v", got, data)
	}
}

// TestLengthFieldWrap corresponds to S3: the header itself straddles the
// wrap boundary and must be reconstructed byte-wise.
func TestLengthFieldWrap(t *testing.T) {
	r := NewRing(16)
	off := r.PutLen(15, 0x1234)
	if off != 1 {
		t.Fatalf("off = %d, want 1", off)
	}
	if got := r.GetLen(15); got != 0x1234 {
		t.Fatalf("GetLen = %#x, want %#x", got, 0x1234)
	}
	// low byte at 15, high byte at 0
	if r.buf[15] != 0x34 || r.buf[0] != 0x12 {
		t.Fatalf("header bytes = %#x,%#x, want 0x34,0x12", r.buf[15], r.buf[0])
	}
}
