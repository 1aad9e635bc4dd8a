package providers

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// KeyPair is the process's ed25519 signing identity, loaded once at startup
// from the standard public_key.pem / secret_key.pem layout. It is read-only
// after load and safe for concurrent use by in-flight mint calls.
type KeyPair struct {
	public ed25519.PublicKey
	secret ed25519.PrivateKey
}

func LoadKeyPair(dir string) (*KeyPair, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "secret_key.pem"))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("secret key file contains no PEM block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secret key: %w", err)
	}
	secret, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("secret key is not ed25519")
	}

	return NewKeyPair(secret), nil
}

func NewKeyPair(secret ed25519.PrivateKey) *KeyPair {
	return &KeyPair{
		public: secret.Public().(ed25519.PublicKey),
		secret: secret,
	}
}

// AccountHex is the tagged public key in Casper's hex form (01 = ed25519).
func (k *KeyPair) AccountHex() string {
	return "01" + hex.EncodeToString(k.public)
}

func (k *KeyPair) PublicKey() ed25519.PublicKey {
	return k.public
}

// Sign produces the tagged hex signature over the given deploy hash.
func (k *KeyPair) Sign(message []byte) string {
	return "01" + hex.EncodeToString(ed25519.Sign(k.secret, message))
}
