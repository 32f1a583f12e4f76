package domain

import (
	"errors"
	"strings"
)

// Identity é o email normalizado usado como chave de todo estado por usuário.
type Identity string

var ErrInvalidIdentity = errors.New("invalid identity: email is required")

// NormalizeIdentity aplica trim + lower-case. Vazio é erro de validação.
func NormalizeIdentity(email string) (Identity, error) {
	v := strings.ToLower(strings.TrimSpace(email))
	if v == "" {
		return "", ErrInvalidIdentity
	}
	return Identity(v), nil
}

// Masked devolve a identidade mascarada para logs (ex: "u***@e******.com").
func (id Identity) Masked() string {
	user, host, ok := strings.Cut(string(id), "@")
	if !ok || user == "" || host == "" {
		return "[invalid-email]"
	}
	if len(user) > 1 {
		user = user[:1] + strings.Repeat("*", len(user)-1)
	}
	parts := strings.Split(host, ".")
	for i := 0; i < len(parts)-1; i++ {
		parts[i] = strings.Repeat("*", len(parts[i]))
	}
	return user + "@" + strings.Join(parts, ".")
}
