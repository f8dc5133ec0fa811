package encryption

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tink-crypto/tink-go/v2/subtle/random"

	"github.com/idelchi/mbcbc/internal/config"
	"github.com/idelchi/mbcbc/internal/fileutil"
	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// Processor handles the encryption and decryption of files.
type Processor struct {
	// cfg contains runtime configuration options
	cfg *config.Config

	// engine batches the cipher work of all files
	engine cipherEngine

	// key is the derived cipher key, macKey the derived tag key
	key    *cbcmb.Key
	macKey []byte

	log zerolog.Logger
}

// NewProcessor derives the cipher and MAC keys from master and returns a
// processor that runs its cipher work on engine.
func NewProcessor(cfg *config.Config, engine cipherEngine, master []byte, log zerolog.Logger) (*Processor, error) {
	encKey, macKey, err := deriveKeys(master)
	if err != nil {
		return nil, err
	}

	key, err := cbcmb.NewKey(encKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return &Processor{
		cfg:    cfg,
		engine: engine,
		key:    key,
		macKey: macKey,
		log:    log,
	}, nil
}

// ProcessFile encrypts or decrypts one file and reports the outcome.
func (p *Processor) ProcessFile(ctx context.Context, filename string) Result {
	res := Result{Input: filename, KeySize: p.key.Size()}

	outPath := p.OutputPath(filename)

	if err := p.processFile(ctx, filename, outPath, &res); err != nil {
		res.Error = err

		return res
	}

	res.Output = outPath

	p.log.Debug().
		Str("input", filename).
		Str("output", outPath).
		Int64("size", res.OutputSize).
		Int("requests", res.Requests).
		Msg("processed")

	return res
}

// OutputPath generates the output file path based on the input filename
// and the configured suffixes for encryption/decryption.
func (p *Processor) OutputPath(filename string) string {
	return OutputPath(p.cfg, filename)
}

// OutputPath names the file that filename is written to under cfg.
func OutputPath(cfg *config.Config, filename string) string {
	ext := cfg.EncryptSuffix

	if cfg.Decrypt {
		filename = strings.TrimSuffix(filename, cfg.EncryptSuffix)
		ext = cfg.DecryptSuffix
	}

	return filepath.Join(filepath.Dir(filename), filepath.Base(filename)+ext)
}

// encrypt writes the envelope for the plaintext read from reader.
func (p *Processor) encrypt(ctx context.Context, reader io.Reader, writer io.Writer, isExec bool, requests *int) error {
	header := envelopeHeader{executable: isExec, keySize: p.key.Size()}.marshal()

	iv := random.GetRandomBytes(cbcmb.BlockSize)

	mac := hmac.New(sha256.New, p.macKey)
	mac.Write(header)
	mac.Write(iv)

	if _, err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if _, err := writer.Write(iv); err != nil {
		return fmt.Errorf("writing IV: %w", err)
	}

	if err := p.encryptCBC(ctx, reader, writer, mac, iv, requests); err != nil {
		return err
	}

	if _, err := writer.Write(mac.Sum(nil)); err != nil {
		return fmt.Errorf("writing authentication tag: %w", err)
	}

	return nil
}

// decrypt reads an envelope of size bytes from reader and writes the plaintext
// to writer. It returns whether the original file was executable.
func (p *Processor) decrypt(reader io.Reader, writer io.Writer, size int64, requests *int) (bool, error) {
	if size < int64(envelopeOverhead+cbcmb.BlockSize) {
		return false, fmt.Errorf("%w: input too short", ErrProcessing)
	}

	header := make([]byte, envelopeHeaderSize)
	if _, err := io.ReadFull(reader, header); err != nil {
		return false, fmt.Errorf("reading header: %w", err)
	}

	env, err := parseEnvelopeHeader(header)
	if err != nil {
		return false, err
	}

	if env.keySize != p.key.Size() {
		return false, fmt.Errorf("%w: file uses %s, key is %s", ErrKeyMismatch, env.keySize, p.key.Size())
	}

	iv := make([]byte, cbcmb.BlockSize)
	if _, err := io.ReadFull(reader, iv); err != nil {
		return false, fmt.Errorf("reading IV: %w", err)
	}

	mac := hmac.New(sha256.New, p.macKey)
	mac.Write(header)
	mac.Write(iv)

	padErr, err := p.decryptCBC(reader, writer, mac, iv, size-int64(envelopeOverhead), requests)
	if err != nil {
		return false, err
	}

	tag := make([]byte, envelopeTagSize)
	if _, err := io.ReadFull(reader, tag); err != nil {
		return false, fmt.Errorf("reading authentication tag: %w", err)
	}

	if !hmac.Equal(mac.Sum(nil), tag) {
		return false, fmt.Errorf("%w: %w", ErrProcessing, ErrAuthentication)
	}

	if padErr != nil {
		return false, fmt.Errorf("removing padding: %w", padErr)
	}

	return env.executable, nil
}

// processFile handles the encryption or decryption of a single file.
// It creates a temporary file for output and performs an atomic rename on completion.
func (p *Processor) processFile(ctx context.Context, filename, outPath string, res *Result) (err error) {
	tc, err := fileutil.NewTempContext(filename, outPath)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	res.InputSize = tc.SrcInfo.Size()

	inFile, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer inFile.Close()

	executable := tc.IsExec

	if p.cfg.Decrypt {
		executable, err = p.decrypt(inFile, tc.TmpFile, res.InputSize, &res.Requests)
		if err != nil {
			return fmt.Errorf("decrypting file: %w", err)
		}
	} else if err = p.encrypt(ctx, inFile, tc.TmpFile, tc.IsExec, &res.Requests); err != nil {
		return fmt.Errorf("encrypting file: %w", err)
	}

	if err = tc.Commit(executable); err != nil {
		return err
	}

	res.OutputSize, err = fileutil.FinalizeOutput(outPath, p.cfg.PreserveTimestamps, tc.SrcInfo.ModTime())

	return err
}
