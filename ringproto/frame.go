package ringproto

import "ringlink-go/errcode"

// WriteFrame writes a length-prefixed frame (header + payload) into r
// starting at offset head, wrap-aware across the header and the payload
// alike. It returns the advanced head and the up-to-two linear segments
// actually written, spanning the whole frame — the exact range a producer
// must pass to CacheOps.Clean before publishing, rather than a single
// address/length pair that might wrap.
func WriteFrame(r *Ring, head uint32, payload []byte) (newHead uint32, seg1, seg2 []byte) {
	size := uint32(r.Size())
	total := uint32(LengthFieldSize + len(payload))
	seg1, seg2 = r.segments(head, total)

	off := r.PutLen(head, uint16(len(payload)))
	r.WriteAt(off, payload)

	newHead = (head + total) % size
	return newHead, seg1, seg2
}

// ReadFrame attempts to read one frame starting at consumer offset tail,
// given used bytes currently available between tail and the producer's
// last published index. ok is false when the bytes available don't yet
// cover a full frame (partial header or partial payload) — the caller
// must not advance tail in that case, it must wait for more data. err is
// MalformedFrame when the advertised length could never fit the ring
// regardless of how much more data arrives, which the caller should treat
// as a protocol violation and stop draining.
func ReadFrame(r *Ring, tail uint32, used uint32) (payload []byte, newTail uint32, ok bool, err error) {
	if used < LengthFieldSize {
		return nil, tail, false, nil
	}

	l := r.GetLen(tail)
	if uint32(l) > uint32(MaxPayloadFor(r.Size())) {
		return nil, tail, false, errcode.MalformedFrame
	}

	total := uint32(LengthFieldSize) + uint32(l)
	if used < total {
		return nil, tail, false, nil
	}

	size := uint32(r.Size())
	payloadOff := (tail + LengthFieldSize) % size
	p1, p2 := r.ReadAt(payloadOff, uint32(l))
	if p2 == nil {
		payload = p1
	} else {
		payload = make([]byte, l)
		n := copy(payload, p1)
		copy(payload[n:], p2)
	}

	newTail = (tail + total) % size
	return payload, newTail, true, nil
}
