package domain

import (
	"strings"
	"time"
)

type KeyMode string

const (
	KeyModeLive KeyMode = "live"
	KeyModeTest KeyMode = "test"
)

const (
	credentialScheme = "sk_"
	// KeyIDLen é o tamanho do id público (uuid sem hífens).
	KeyIDLen = 32
	// SecretLen é o tamanho do segredo em hex (32 bytes = 256 bits).
	SecretLen = 64
)

// APIKey é o registro persistido. O segredo em texto nunca é gravado, só Hash.
type APIKey struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	Hash       string     `json:"hash"`
	Label      string     `json:"label"`
	IsTestKey  bool       `json:"is_test_key"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func (k APIKey) Mode() KeyMode {
	if k.IsTestKey {
		return KeyModeTest
	}
	return KeyModeLive
}

// Credential é o bearer já quebrado nas partes.
type Credential struct {
	Mode   KeyMode
	KeyID  string
	Secret string
}

// FormatCredential monta o bearer entregue ao usuário:
// sk_<mode>_<keyID>_<secret>.
func FormatCredential(mode KeyMode, keyID, secret string) string {
	return credentialScheme + string(mode) + "_" + keyID + "_" + secret
}

// ParseCredential valida só o formato, sem tocar em store.
func ParseCredential(raw string) (Credential, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), credentialScheme)
	if !ok {
		return Credential{}, ErrMalformedCredential
	}
	mode, rest, ok := strings.Cut(rest, "_")
	if !ok || (KeyMode(mode) != KeyModeLive && KeyMode(mode) != KeyModeTest) {
		return Credential{}, ErrMalformedCredential
	}
	keyID, secret, ok := strings.Cut(rest, "_")
	if !ok || len(keyID) != KeyIDLen || len(secret) != SecretLen {
		return Credential{}, ErrMalformedCredential
	}
	if !isLowerHex(keyID) || !isLowerHex(secret) {
		return Credential{}, ErrMalformedCredential
	}
	return Credential{Mode: KeyMode(mode), KeyID: keyID, Secret: secret}, nil
}

// BearerToken extrai o token de "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
