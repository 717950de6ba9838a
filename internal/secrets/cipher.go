// Package secrets provides at-rest encryption for generated compliance
// documents using age.
package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"
)

var (
	// ErrNoPublicKey is returned when no public key is configured for encryption.
	ErrNoPublicKey = errors.New("no public key configured for encryption")
	// ErrNoPrivateKey is returned when no private key is configured for decryption.
	ErrNoPrivateKey = errors.New("no private key configured for decryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Cipher encrypts and decrypts document content with age X25519 keys.
// Generated documents contain prompts and outputs, so they are never stored
// in plaintext.
type Cipher struct {
	publicKey  *age.X25519Recipient // for encryption (worker)
	privateKey *age.X25519Identity  // for decryption (API server)
	logger     *slog.Logger
}

// Config holds the configuration for the document cipher.
type Config struct {
	// AgePublicKey is the age public key for encryption.
	// Format: age1... (Bech32 encoded)
	AgePublicKey string
	// AgePrivateKey is the age private key for decryption.
	// Format: AGE-SECRET-KEY-1... (Bech32 encoded)
	AgePrivateKey string
}

// NewCipher creates a new document cipher with the given configuration.
// At least one of public key (for encryption) or private key (for decryption)
// must be provided.
func NewCipher(cfg *Config, logger *slog.Logger) (*Cipher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cipher{logger: logger}

	if cfg.AgePublicKey != "" {
		recipient, err := age.ParseX25519Recipient(cfg.AgePublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid public key: %v", ErrInvalidKey, err)
		}
		c.publicKey = recipient
	}

	if cfg.AgePrivateKey != "" {
		identity, err := age.ParseX25519Identity(cfg.AgePrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key: %v", ErrInvalidKey, err)
		}
		c.privateKey = identity
		// The private key implies the public one.
		if c.publicKey == nil {
			c.publicKey = identity.Recipient()
		}
	}

	if c.publicKey == nil && c.privateKey == nil {
		return nil, fmt.Errorf("%w: no keys configured", ErrInvalidKey)
	}

	return c, nil
}

// CanEncrypt reports whether the cipher can encrypt content.
func (c *Cipher) CanEncrypt() bool {
	return c.publicKey != nil
}

// CanDecrypt reports whether the cipher can decrypt content.
func (c *Cipher) CanDecrypt() bool {
	return c.privateKey != nil
}

// Encrypt encrypts plaintext using age encryption with the configured public key.
func (c *Cipher) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if c.publicKey == nil {
		return nil, ErrNoPublicKey
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.publicKey)
	if err != nil {
		c.logger.Error("failed to create age encryptor", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	return buf.Bytes(), nil
}

// Decrypt decrypts age-encrypted ciphertext using the configured private key.
func (c *Cipher) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if c.privateKey == nil {
		return nil, ErrNoPrivateKey
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), c.privateKey)
	if err != nil {
		c.logger.Error("failed to create age decryptor", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// GenerateKeyPair returns a new age key pair (public, private) for setup tooling.
func GenerateKeyPair() (string, string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age identity: %w", err)
	}
	return identity.Recipient().String(), identity.String(), nil
}
