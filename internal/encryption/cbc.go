package encryption

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// cipherEngine is the part of the scheduler the processor needs.
type cipherEngine interface {
	EncryptChunked(ctx context.Context, key *cbcmb.Key, dst, src, iv []byte, chunk int) error
	Decrypt(key *cbcmb.Key, dst, src, iv []byte) error
}

// encryptCBC encrypts r into w buffer by buffer, padding the last one. Each
// buffer is one engine request, counted in requests; iv carries the chaining
// value between them.
func (p *Processor) encryptCBC(ctx context.Context, r io.Reader, w io.Writer, mac hash.Hash, iv []byte, requests *int) error {
	bufp := bufferPool.Get().(*[]byte) //nolint:forcetypeassert
	defer bufferPool.Put(bufp)

	buf := (*bufp)[:defaultBufferSize]

	for {
		n, err := io.ReadFull(r, buf)

		final := false

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			final = true
		default:
			return fmt.Errorf("reading plaintext: %w", err)
		}

		chunk := buf[:n]
		if final {
			chunk = pkcs7Pad(chunk)
		}

		if err := p.engine.EncryptChunked(ctx, p.key, chunk, chunk, iv, p.cfg.Chunk); err != nil {
			return fmt.Errorf("encrypting: %w", err)
		}

		*requests++

		mac.Write(chunk)

		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("writing ciphertext: %w", err)
		}

		if final {
			return nil
		}
	}
}

// decryptCBC decrypts size bytes of ciphertext from r into w and strips the
// padding. A padding error is returned alongside the ciphertext being fully
// consumed, so the caller can check the tag first.
func (p *Processor) decryptCBC(
	r io.Reader, w io.Writer, mac hash.Hash, iv []byte, size int64, requests *int,
) (padErr, err error) {
	if size <= 0 || size%cbcmb.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBlockSize, size)
	}

	bufp := bufferPool.Get().(*[]byte) //nolint:forcetypeassert
	defer bufferPool.Put(bufp)

	for remaining := size; remaining > 0; {
		chunk := (*bufp)[:min(remaining, defaultBufferSize)]

		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("reading ciphertext: %w", err)
		}

		remaining -= int64(len(chunk))

		mac.Write(chunk)

		if err := p.engine.Decrypt(p.key, chunk, chunk, iv); err != nil {
			return nil, fmt.Errorf("decrypting: %w", err)
		}

		*requests++

		if remaining == 0 {
			chunk, padErr = pkcs7Unpad(chunk)
			if padErr != nil {
				return padErr, nil
			}
		}

		if _, err := w.Write(chunk); err != nil {
			return nil, fmt.Errorf("writing plaintext: %w", err)
		}
	}

	return nil, nil
}
