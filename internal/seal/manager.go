// Package seal provides envelope encryption for persisted session state.
// Each blob is encrypted with a fresh data key (DEK); the DEK itself is
// wrapped either by AWS KMS (production) or by a local master key. AES-GCM
// supplies the integrity tag: any tampering fails the open, never returns
// garbage.
package seal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrSealFailed = errors.New("seal failed")
	ErrOpenFailed = errors.New("open failed")
)

const dekLength = 32 // AES-256

// Envelope is the persisted shape of a sealed blob.
type Envelope struct {
	Version      string    `json:"version"`
	KeyID        string    `json:"key_id"`
	EncryptedDEK string    `json:"encrypted_dek"`
	Ciphertext   string    `json:"ciphertext"` // nonce || ct, base64
	CreatedAt    time.Time `json:"created_at"`
}

// KMSAPI is the subset of the KMS client used here.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, in *kms.GenerateDataKeyInput, opts ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, opts ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Manager seals and opens blobs. The key-wrapping path is fixed at
// construction: KMS when enabled, local master key otherwise.
type Manager struct {
	kmsClient KMSAPI
	cfg       *config.Config
	masterKey []byte
	dekCache  sync.Map // wrapped DEK (base64) -> plaintext DEK
}

// NewManager builds a seal manager. kmsClient may be nil when KMS is
// disabled. In local mode the master key comes from config; when absent an
// ephemeral key is generated, so sealed state will not survive a restart.
func NewManager(cfg *config.Config, kmsClient KMSAPI) (*Manager, error) {
	m := &Manager{
		kmsClient: kmsClient,
		cfg:       cfg,
	}

	if cfg.KMS.Enabled {
		if kmsClient == nil {
			return nil, fmt.Errorf("KMS enabled but no KMS client provided")
		}
		return m, nil
	}

	if cfg.Session.MasterKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Session.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("decode SESSION_MASTER_KEY: %w", err)
		}
		if len(key) != dekLength {
			return nil, fmt.Errorf("SESSION_MASTER_KEY must decode to %d bytes, got %d", dekLength, len(key))
		}
		m.masterKey = key
	} else {
		key := make([]byte, dekLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate ephemeral master key: %w", err)
		}
		m.masterKey = key
		util.Warn("No SESSION_MASTER_KEY configured; sealed sessions will not survive a restart")
	}
	return m, nil
}

// Seal encrypts plaintext under a fresh DEK. purpose is bound into the
// authenticated data, so a blob sealed for one purpose cannot be opened as
// another.
func (m *Manager) Seal(ctx context.Context, purpose string, plaintext []byte) (*Envelope, error) {
	dek, wrapped, keyID, err := m.newDataKey(ctx, purpose)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	ct := gcm.Seal(nonce, nonce, plaintext, []byte(purpose))

	wrappedB64 := base64.StdEncoding.EncodeToString(wrapped)
	m.dekCache.Store(wrappedB64, dek)

	return &Envelope{
		Version:      "v1",
		KeyID:        keyID,
		EncryptedDEK: wrappedB64,
		Ciphertext:   base64.StdEncoding.EncodeToString(ct),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Open decrypts an envelope. Any corruption of the ciphertext, the wrapped
// DEK, or the purpose binding yields ErrOpenFailed.
func (m *Manager) Open(ctx context.Context, purpose string, env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrOpenFailed)
	}

	dek, err := m.unwrapDEK(ctx, purpose, env.EncryptedDEK)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrOpenFailed)
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrOpenFailed)
	}

	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, []byte(purpose))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return plaintext, nil
}

// ClearCache drops all cached plaintext DEKs.
func (m *Manager) ClearCache() {
	m.dekCache.Range(func(key, _ interface{}) bool {
		m.dekCache.Delete(key)
		return true
	})
}

func (m *Manager) newDataKey(ctx context.Context, purpose string) (dek, wrapped []byte, keyID string, err error) {
	if m.cfg.KMS.Enabled {
		out, err := m.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
			KeyId:   aws.String(m.cfg.KMS.KeyID),
			KeySpec: types.DataKeySpecAes256,
		})
		if err != nil {
			return nil, nil, "", fmt.Errorf("%w: generate data key: %v", ErrSealFailed, err)
		}
		return out.Plaintext, out.CiphertextBlob, m.cfg.KMS.KeyID, nil
	}

	dek = make([]byte, dekLength)
	if _, err := rand.Read(dek); err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	wrapped, err = m.wrapLocal(purpose, dek)
	if err != nil {
		return nil, nil, "", err
	}
	return dek, wrapped, "local", nil
}

func (m *Manager) unwrapDEK(ctx context.Context, purpose, wrappedB64 string) ([]byte, error) {
	if cached, ok := m.dekCache.Load(wrappedB64); ok {
		return cached.([]byte), nil
	}

	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid DEK encoding", ErrOpenFailed)
	}

	var dek []byte
	if m.cfg.KMS.Enabled {
		out, err := m.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: wrapped})
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt data key: %v", ErrOpenFailed, err)
		}
		dek = out.Plaintext
	} else {
		dek, err = m.unwrapLocal(purpose, wrapped)
		if err != nil {
			return nil, err
		}
	}

	m.dekCache.Store(wrappedB64, dek)
	return dek, nil
}

// wrapLocal encrypts the DEK under a purpose-scoped subkey of the master key.
func (m *Manager) wrapLocal(purpose string, dek []byte) ([]byte, error) {
	gcm, err := newGCM(m.subkey(purpose))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return gcm.Seal(nonce, nonce, dek, nil), nil
}

func (m *Manager) unwrapLocal(purpose string, wrapped []byte) ([]byte, error) {
	gcm, err := newGCM(m.subkey(purpose))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if len(wrapped) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: wrapped DEK too short", ErrOpenFailed)
	}
	nonce, ct := wrapped[:gcm.NonceSize()], wrapped[gcm.NonceSize():]
	dek, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return dek, nil
}

// subkey derives a purpose-scoped wrapping key from the master key so one
// leaked subkey does not expose blobs sealed for other purposes.
func (m *Manager) subkey(purpose string) []byte {
	key := make([]byte, dekLength)
	r := hkdf.New(sha256.New, m.masterKey, nil, []byte("admin-auth/"+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF over SHA-256 cannot fail for a 32-byte read.
		panic(err)
	}
	return key
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
