package cbcmb_test

import (
	"encoding/hex"
	"os"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// Vector is a single CBC known-answer case from testdata.
type Vector struct {
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	IV         string `yaml:"iv"`
	Plaintext  string `yaml:"plaintext"`
	Ciphertext string `yaml:"ciphertext"`
}

type decodedVector struct {
	name       string
	key        *cbcmb.Key
	iv         [cbcmb.BlockSize]byte
	plaintext  []byte
	ciphertext []byte
}

func loadVectors(t *testing.T) []decodedVector {
	t.Helper()

	data, err := os.ReadFile("testdata/nist_cbc.yml")
	if err != nil {
		t.Fatalf("reading vectors: %v", err)
	}

	var vectors []Vector
	if err := yaml.Unmarshal(data, &vectors); err != nil {
		t.Fatalf("parsing vectors: %v", err)
	}

	if len(vectors) == 0 {
		t.Fatal("no vectors in testdata/nist_cbc.yml")
	}

	decoded := make([]decodedVector, 0, len(vectors))

	for _, v := range vectors {
		d := decodedVector{name: v.Name}

		raw := mustHex(t, v.Key)

		d.key, err = cbcmb.NewKey(raw)
		if err != nil {
			t.Fatalf("%s: %v", v.Name, err)
		}

		copy(d.iv[:], mustHex(t, v.IV))
		d.plaintext = mustHex(t, v.Plaintext)
		d.ciphertext = mustHex(t, v.Ciphertext)

		decoded = append(decoded, d)
	}

	return decoded
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decoding %q: %v", s, err)
	}

	return b
}
