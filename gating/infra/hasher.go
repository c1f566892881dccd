package infra

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost fica na casa das dezenas de ms por hash: lento para
// força bruta, rápido o bastante para emissão interativa.
const DefaultBcryptCost = 10

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return BcryptHasher{Cost: cost}
}

// Hash implementa domain.Hasher. bcrypt corta a entrada em 72 bytes;
// o segredo tem 64.
func (h BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
