package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// ErrNotSealed is returned when a record read through the encryption
// middleware was stored in the clear.
var ErrNotSealed = errors.New("record is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new records.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// record, so keys can be rotated without rewriting stored records.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.RecordStore
	config EncryptionConfig
}

// sealedBody is the part of a record hidden by encryption.
type sealedBody struct {
	Nodes    []domain.ExecutionNodeView `json:"nodes"`
	Edges    []domain.ExecutionEdgeView `json:"edges"`
	Logs     []domain.LogEntry          `json:"logs"`
	Metadata domain.ExecutionMetadata   `json:"metadata"`
}

// NewEncryptionMiddleware creates a middleware that encrypts node views,
// logs and metadata of every record with AES-GCM. Identity, status and
// timing stay in the clear so records can still be listed.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, rec *domain.ExecutionRecord) error {
	plainText, err := json.Marshal(sealedBody{
		Nodes:    rec.Nodes,
		Edges:    rec.Edges,
		Logs:     rec.Logs,
		Metadata: rec.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}

	envelope := *rec
	envelope.Nodes = nil
	envelope.Edges = nil
	envelope.Logs = nil
	envelope.Metadata = domain.ExecutionMetadata{}
	envelope.Sealed = base64.StdEncoding.EncodeToString(ciphertext)
	return m.next.Save(ctx, &envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, workflowID, recordID string) (*domain.ExecutionRecord, error) {
	envelope, err := m.next.Load(ctx, workflowID, recordID)
	if err != nil {
		return nil, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) List(ctx context.Context, workflowID string) ([]*domain.ExecutionRecord, error) {
	envelopes, err := m.next.List(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ExecutionRecord, 0, len(envelopes))
	for _, envelope := range envelopes {
		rec, err := m.open(envelope)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", envelope.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, workflowID, recordID string) error {
	return m.next.Delete(ctx, workflowID, recordID)
}

func (m *encryptionMiddleware) open(envelope *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
	if envelope.Sealed == "" {
		return nil, ErrNotSealed
	}
	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt record: %w", err)
	}

	var body sealedBody
	if err := json.Unmarshal(plainText, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted record: %w", err)
	}
	rec := *envelope
	rec.Nodes = body.Nodes
	rec.Edges = body.Edges
	rec.Logs = body.Logs
	rec.Metadata = body.Metadata
	rec.Sealed = ""
	return &rec, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
