package audio_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/MrWong99/lingualive/pkg/audio"
)

func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))

	inputs := [][]byte{nil, {}, {0}, {0xff, 0xfe, 0xfd}, []byte("hola")}
	for range 64 {
		b := make([]byte, rng.IntN(9000))
		for i := range b {
			b[i] = byte(rng.UintN(256))
		}
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		got, err := audio.DecodeBase64(audio.EncodeBase64(in))
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("round trip mismatch for %d-byte input", len(in))
		}
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"not base64!", "abc", "====", "ab\x00c"} {
		_, err := audio.DecodeBase64(in)
		if !errors.Is(err, audio.ErrDecode) {
			t.Errorf("DecodeBase64(%q): err = %v, want ErrDecode", in, err)
		}
	}
}
