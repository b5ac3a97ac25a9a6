package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecode is returned when a wire payload is not valid base64.
var ErrDecode = errors.New("audio: invalid base64 payload")

// EncodeBase64 encodes b with the standard padded alphabet. It never fails.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 is the inverse of [EncodeBase64]. Errors wrap [ErrDecode].
func DecodeBase64(text string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}
