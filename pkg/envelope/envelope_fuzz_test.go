package envelope

import (
	"bytes"
	"testing"
)

func FuzzUnwrapSigned(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})
	f.Add([]byte{0, 0, 0, 3, 'a', 'b', 'c', 'd'})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		sig, env, err := UnwrapSigned(data)
		if err != nil {
			return
		}
		if !bytes.Equal(WrapSigned(sig, env), data) {
			t.Fatalf("rewrapping changed the bytes")
		}
	})
}

func FuzzDecode(f *testing.F) {
	f.Add(make([]byte, HeaderSize))
	f.Add(make([]byte, HeaderSize-1))
	f.Add(bytes.Repeat([]byte{0x42}, 100))

	f.Fuzz(func(t *testing.T, data []byte) {
		e, err := Decode(data)
		if err != nil {
			if len(data) >= HeaderSize {
				t.Fatalf("unexpected error for %d bytes: %v", len(data), err)
			}
			return
		}
		if !bytes.Equal(e.Encode(), data) {
			t.Fatalf("re-encoding changed the bytes")
		}
	})
}
