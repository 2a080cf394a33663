package services

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// EncryptionService handles encryption/decryption of sensitive data
type EncryptionService struct {
	key *fernet.Key
}

// NewEncryptionService creates a new encryption service with the provided key
func NewEncryptionService(keyString string) (*EncryptionService, error) {
	if keyString == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	key, err := fernet.DecodeKey(keyString)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &EncryptionService{key: key}, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded token
func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil // Don't encrypt empty strings
	}

	token, err := fernet.EncryptAndSign([]byte(plaintext), e.key)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(token), nil
}

// Decrypt decrypts a base64-encoded token and returns plaintext
func (e *EncryptionService) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil // Return empty string for empty tokens
	}

	// Decode base64 first
	tokenBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid token format: %w", err)
	}

	// Set TTL to 100 years - we don't want credentials to expire
	plaintext := fernet.VerifyAndDecrypt(tokenBytes, time.Hour*24*365*100, []*fernet.Key{e.key})
	if plaintext == nil {
		return "", fmt.Errorf("failed to decrypt token: invalid or expired")
	}

	return string(plaintext), nil
}
