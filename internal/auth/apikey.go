package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "pk"

var ErrKeyInvalid = errors.New("invalid api key")

// GenerateKey mints a project API key of the form "pk_<key id>_<secret>".
// The key id is stored in clear for lookup; only the bcrypt hash of the
// secret is persisted, so the full key is shown exactly once.
func GenerateKey() (full, keyID, secretHash string, err error) {
	idBytes := make([]byte, 8)
	if _, err = rand.Read(idBytes); err != nil {
		return "", "", "", err
	}
	keyID = hex.EncodeToString(idBytes)

	secretBytes := make([]byte, 24)
	if _, err = rand.Read(secretBytes); err != nil {
		return "", "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	secretHash, err = HashSecret(secret)
	if err != nil {
		return "", "", "", err
	}
	return keyPrefix + "_" + keyID + "_" + secret, keyID, secretHash, nil
}

// SplitKey parses a presented key into key id and secret. The key id is
// hex so the first two underscores delimit it unambiguously; the secret
// may itself contain underscores.
func SplitKey(full string) (keyID, secret string, err error) {
	prefix, rest, ok := strings.Cut(full, "_")
	if !ok || prefix != keyPrefix {
		return "", "", ErrKeyInvalid
	}
	keyID, secret, ok = strings.Cut(rest, "_")
	if !ok || keyID == "" || secret == "" {
		return "", "", ErrKeyInvalid
	}
	return keyID, secret, nil
}

func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func VerifySecret(secretHash, secret string) error {
	if bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)) != nil {
		return ErrKeyInvalid
	}
	return nil
}
