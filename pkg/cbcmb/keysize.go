package cbcmb

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// BlockSize is the AES block size in bytes.
const BlockSize = aes.BlockSize

// KeySize is an AES key size in bits.
type KeySize int

const (
	// KeySize128 selects AES-128.
	KeySize128 KeySize = 128
	// KeySize192 selects AES-192.
	KeySize192 KeySize = 192
	// KeySize256 selects AES-256.
	KeySize256 KeySize = 256
)

// KeySizes lists the supported key sizes in manager order.
var KeySizes = [...]KeySize{KeySize128, KeySize192, KeySize256} //nolint:gochecknoglobals

// KeySizeOf returns the KeySize for a raw key of keyLen bytes.
func KeySizeOf(keyLen int) (KeySize, error) {
	switch keyLen {
	case 16:
		return KeySize128, nil
	case 24:
		return KeySize192, nil
	case 32:
		return KeySize256, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, keyLen)
	}
}

// Bytes returns the key length in bytes.
func (k KeySize) Bytes() int {
	return int(k) / 8
}

// Index returns the position of k in KeySizes, or -1.
func (k KeySize) Index() int {
	switch k {
	case KeySize128:
		return 0
	case KeySize192:
		return 1
	case KeySize256:
		return 2
	default:
		return -1
	}
}

// Valid reports whether k is one of the supported key sizes.
func (k KeySize) Valid() bool {
	return k.Index() >= 0
}

func (k KeySize) String() string {
	return fmt.Sprintf("AES-%d", int(k))
}

// Key is an expanded AES key schedule together with its size.
type Key struct {
	block cipher.Block
	size  KeySize
}

// NewKey expands raw into an encryption key schedule.
func NewKey(raw []byte) (*Key, error) {
	size, err := KeySizeOf(len(raw))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &Key{block: block, size: size}, nil
}

// Size returns the key size.
func (k *Key) Size() KeySize {
	return k.size
}

// Valid reports whether k holds an expanded key of a supported size. Keys not
// built by NewKey are invalid.
func (k *Key) Valid() bool {
	return k != nil && k.size.Valid() && k.block != nil
}

// Block returns the expanded key as a cipher.Block.
func (k *Key) Block() cipher.Block {
	return k.block
}
