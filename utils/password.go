package utils

import "golang.org/x/crypto/bcrypt"

// HashSecret returns the bcrypt hash of the admin secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret compares a bcrypt hash with its possible plaintext equivalent.
func CheckSecret(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
