package github

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// encryptSecret seals a plaintext secret for the GitHub Actions secrets API
// using the base64-encoded public key of the target org or repository. The
// returned ciphertext is base64-encoded as required by the API.
func encryptSecret(publicKeyB64, plaintext string) (string, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(keyBytes) != 32 {
		return "", fmt.Errorf("invalid public key length %d, expected 32 bytes", len(keyBytes))
	}

	var publicKey [32]byte
	copy(publicKey[:], keyBytes)

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), &publicKey, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}
