package encryption

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// Envelope layout:
//
//	magic "MBCB" | version | flags | key size index | IV (16) | ciphertext | HMAC-SHA256 tag (32)
//
// The tag covers everything before it.
const (
	envelopeMagic   = "MBCB"
	envelopeVersion = byte(1)
	envelopeTagSize = sha256.Size

	envelopeFlagExec = 0x01
)

const (
	envelopeHeaderSize = len(envelopeMagic) + 3
	envelopeOverhead   = envelopeHeaderSize + cbcmb.BlockSize + envelopeTagSize
)

// ErrProcessing indicates an error during envelope processing.
var ErrProcessing = errors.New("envelope processing error")

type envelopeHeader struct {
	executable bool
	keySize    cbcmb.KeySize
}

func (h envelopeHeader) marshal() []byte {
	header := make([]byte, envelopeHeaderSize)
	copy(header, envelopeMagic)

	header[len(envelopeMagic)] = envelopeVersion

	var flags byte

	if h.executable {
		flags |= envelopeFlagExec
	}

	header[len(envelopeMagic)+1] = flags
	header[len(envelopeMagic)+2] = byte(h.keySize.Index())

	return header
}

func parseEnvelopeHeader(header []byte) (envelopeHeader, error) {
	if len(header) != envelopeHeaderSize {
		return envelopeHeader{}, fmt.Errorf("%w: envelope header too short", ErrProcessing)
	}

	if !bytes.Equal(header[:len(envelopeMagic)], []byte(envelopeMagic)) {
		return envelopeHeader{}, fmt.Errorf("%w: invalid envelope magic", ErrProcessing)
	}

	version := header[len(envelopeMagic)]
	if version != envelopeVersion {
		return envelopeHeader{}, fmt.Errorf("%w: unsupported envelope version %d", ErrProcessing, version)
	}

	index := int(header[len(envelopeMagic)+2])
	if index >= len(cbcmb.KeySizes) {
		return envelopeHeader{}, fmt.Errorf("%w: unsupported key size index %d", ErrProcessing, index)
	}

	return envelopeHeader{
		executable: header[len(envelopeMagic)+1]&envelopeFlagExec != 0,
		keySize:    cbcmb.KeySizes[index],
	}, nil
}

// deriveKeys splits the master key into a cipher key of the same size and a
// 32-byte MAC key.
func deriveKeys(master []byte) (encKey, macKey []byte, err error) {
	const macKeyLen = 32

	reader := hkdf.New(sha256.New, master, nil, []byte("mbcbc/cbc-hmac-sha256"))
	derived := make([]byte, len(master)+macKeyLen)

	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, nil, fmt.Errorf("deriving keys: %w", err)
	}

	return derived[:len(master)], derived[len(master):], nil
}
