package interactsh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

const (
	// rsaKeyBits is the size of the per-registration key pair.
	rsaKeyBits = 2048

	// correlationIDLength and nonceLength follow the provider's expectations:
	// the provider matches hits on the first correlationIDLength characters.
	correlationIDLength = 20
	nonceLength         = 13
)

// generateKey creates the per-registration RSA key pair.
func generateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, rsaKeyBits)
}

// encodePublicKey returns the base64 encoded PEM of the PKIX public key,
// the format the register endpoint expects.
func encodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(block), nil
}

// decryptAESKey recovers the AES key the provider encrypted for key.
func decryptAESKey(key *rsa.PrivateKey, encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: aes key: %w", ErrDecrypt, err)
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: aes key: %w", ErrDecrypt, err)
	}
	return plain, nil
}

// decryptRecord decrypts one base64 encoded AES-CFB record whose first
// block is the IV.
func decryptRecord(aesKey []byte, encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if len(data) < aes.BlockSize {
		return nil, fmt.Errorf("%w: record shorter than one block", ErrDecrypt)
	}
	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]

	plain := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plain, ciphertext) //nolint:staticcheck // the protocol mandates CFB
	return plain, nil
}

// randomLabel returns n random characters valid in a DNS label.
// n must not exceed 26.
func randomLabel(n int) string {
	return strings.ToLower(rand.Text())[:n]
}
