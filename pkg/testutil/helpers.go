package testutil

// FlipLastBit returns a copy of b with the lowest bit of its final byte inverted
func FlipLastBit(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	if len(out) > 0 {
		out[len(out)-1] ^= 0x01
	}
	return out
}
