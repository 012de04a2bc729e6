package attr

import (
	"encoding/binary"
	"fmt"
	"math"
)

func appendCount(buf []byte, n int, what string) ([]byte, error) {
	if n > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d %s", ErrTooMany, n, what)
	}
	return binary.BigEndian.AppendUint16(buf, uint16(n)), nil
}

// payload reads a fixed-layout attribute body.
type payload struct {
	data []byte
	pos  int
}

func (p *payload) u1(what string) (byte, error) {
	if p.pos+1 > len(p.data) {
		return 0, fmt.Errorf("%w reading %s at %d", ErrTruncated, what, p.pos)
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *payload) u2(what string) (uint16, error) {
	if p.pos+2 > len(p.data) {
		return 0, fmt.Errorf("%w reading %s at %d", ErrTruncated, what, p.pos)
	}
	v := binary.BigEndian.Uint16(p.data[p.pos:])
	p.pos += 2
	return v, nil
}

// count reads a u2 list length and checks that the remaining bytes can hold
// that many entries of at least min bytes each.
func (p *payload) count(what string, min int) (int, error) {
	n, err := p.u2(what + " count")
	if err != nil {
		return 0, err
	}
	if int(n)*min > len(p.data)-p.pos {
		return 0, fmt.Errorf("%w: %d %s need at least %d bytes, have %d", ErrTruncated, n, what, int(n)*min, len(p.data)-p.pos)
	}
	return int(n), nil
}

func (p *payload) done() error {
	if p.pos != len(p.data) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(p.data)-p.pos)
	}
	return nil
}
