package sessionstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a sealing key.
const KeySize = chacha20poly1305.KeySize

type sealedSlots struct {
	inner Slots
	aead  cipherAEAD
}

type sealedBatchSlots struct {
	*sealedSlots
	batch BatchSlots
}

// cipherAEAD is the subset of cipher.AEAD used here.
type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// Seal wraps a backend so every value is encrypted with XChaCha20-Poly1305.
// The slot key is bound as associated data, so a value moved to another slot
// fails to open. Batch support of the inner backend is preserved.
func Seal(inner Slots, key []byte) (Slots, error) {
	if inner == nil {
		return nil, errors.New("[sessionstore.Seal] slots backend is required")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[sessionstore.Seal] cipher")
	}
	s := &sealedSlots{inner: inner, aead: aead}
	if batch, ok := inner.(BatchSlots); ok {
		return &sealedBatchSlots{sealedSlots: s, batch: batch}, nil
	}
	return s, nil
}

// ParseKey decodes a 32 byte key given as hex or standard base64.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if b, err := hex.DecodeString(encoded); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(b) == KeySize {
		return b, nil
	}
	return nil, errors.Errorf("[sessionstore.ParseKey] key must be %d bytes of hex or base64", KeySize)
}

func (s *sealedSlots) Get(key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(key, raw)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *sealedSlots) Put(key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Put(key, sealed)
}

func (s *sealedSlots) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *sealedBatchSlots) Apply(puts map[string]string, deletes []string) error {
	sealed := make(map[string]string, len(puts))
	for k, v := range puts {
		enc, err := s.seal(k, v)
		if err != nil {
			return err
		}
		sealed[k] = enc
	}
	return s.batch.Apply(sealed, deletes)
}

func (s *sealedBatchSlots) GetAll(keys []string) (map[string]string, error) {
	raw, err := s.batch.GetAll(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		plain, err := s.open(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = plain
	}
	return out, nil
}

func (s *sealedSlots) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "[sealedSlots.seal] nonce")
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *sealedSlots) open(key, raw string) (string, error) {
	b, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil || len(b) < s.aead.NonceSize() {
		return "", errors.Wrapf(interrors.ErrCorruptRecord, "[sealedSlots.open] %s: bad encoding", key)
	}
	n := s.aead.NonceSize()
	plain, err := s.aead.Open(nil, b[:n], b[n:], []byte(key))
	if err != nil {
		return "", errors.Wrapf(interrors.ErrCorruptRecord, "[sealedSlots.open] %s: authentication failed", key)
	}
	return string(plain), nil
}
