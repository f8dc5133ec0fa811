package encryption

import (
	"bytes"
	"fmt"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// pkcs7Pad adds PKCS#7 padding to the data to make it a multiple of the block size.
// A full block of padding is added to aligned input.
func pkcs7Pad(data []byte) []byte {
	padding := cbcmb.BlockSize - len(data)%cbcmb.BlockSize

	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad removes PKCS#7 padding from the data.
func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 || length%cbcmb.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBlockSize, length)
	}

	padding := int(data[length-1])
	if padding == 0 || padding > cbcmb.BlockSize {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidPadding, padding)
	}

	for _, b := range data[length-padding:] {
		if b != byte(padding) {
			return nil, ErrInvalidPadding
		}
	}

	return data[:length-padding], nil
}
