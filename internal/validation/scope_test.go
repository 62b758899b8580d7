package validation

import (
	"strings"
	"testing"
)

func TestValidScopeName(t *testing.T) {
	valid := []string{
		"deals:create",
		"deals:read",
		"payouts:read",
		"a",
		"a1",
		"scope_con-guion.y_punto",
	}
	for _, s := range valid {
		if !ValidScopeName(s) {
			t.Errorf("%q debería ser válido", s)
		}
	}

	invalid := []string{
		"",
		"Deals:Create", // mayúsculas
		":empieza-mal",
		"termina-mal:",
		"con espacios",
		strings.Repeat("a", 65), // > 64
	}
	for _, s := range invalid {
		if ValidScopeName(s) {
			t.Errorf("%q debería ser inválido", s)
		}
	}
}

func TestValidNonce(t *testing.T) {
	if !ValidNonce(strings.Repeat("ab", 16)) { // 32 hex
		t.Errorf("32 hex minúsculas debe ser válido")
	}
	if !ValidNonce(strings.Repeat("0f", 64)) { // 128 hex
		t.Errorf("128 hex debe ser válido")
	}

	invalid := []string{
		"",
		strings.Repeat("ab", 15),        // 30: corto
		strings.Repeat("ab", 65),        // 130: largo
		strings.Repeat("AB", 16),        // mayúsculas
		strings.Repeat("g", 32),         // no-hex
		strings.Repeat("ab", 15) + "-x", // separadores
	}
	for _, s := range invalid {
		if ValidNonce(s) {
			t.Errorf("%q debería ser inválido", s)
		}
	}
}

func TestValidKeyID(t *testing.T) {
	valid := []string{
		"ak_12345678",                 // forma corta
		"ak_9f2c81d4b7a69f2c81d4b7a6", // forma completa
	}
	for _, s := range valid {
		if !ValidKeyID(s) {
			t.Errorf("%q debería ser válido", s)
		}
	}

	invalid := []string{
		"",
		"ak_",
		"ak_1234567", // 7 hex: corto
		"AK_12345678",
		"pk_12345678",
		"ak_1234567Z",
		"ak_" + strings.Repeat("a", 62), // demasiado largo
	}
	for _, s := range invalid {
		if ValidKeyID(s) {
			t.Errorf("%q debería ser inválido", s)
		}
	}
}
