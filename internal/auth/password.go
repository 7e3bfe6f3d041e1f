package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 与注册接口的校验保持一致
const MinPasswordLength = 8

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch = errors.New("password does not match")
)

// hashCost is raised over time; NeedsRehash reports hashes made with a lower one.
var hashCost = bcrypt.DefaultCost

// HashPassword 校验长度后生成 bcrypt 哈希
func HashPassword(password string) (string, error) {
	if len([]rune(strings.TrimSpace(password))) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword returns ErrPasswordMismatch for a wrong candidate and a
// different error when the stored hash itself is unusable.
func VerifyPassword(hash, candidate string) error {
	if strings.TrimSpace(hash) == "" {
		return errors.New("stored password hash is empty")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// NeedsRehash 哈希成本低于当前设置时返回 true
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err == nil && cost < hashCost
}
