package secretbox

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
)

func setTestKey(t *testing.T, seed byte) {
	t.Helper()
	UnsafeResetForTests()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	t.Setenv(EnvVar, base64.StdEncoding.EncodeToString(raw))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	setTestKey(t, 1)

	msg := "secreto del partner ✓ — ñ"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	setTestKey(t, 100)

	ct, err := Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 2 {
		t.Fatalf("formato inesperado: %q", ct)
	}
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	bs[0] ^= 0xff
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)
	if _, err := Decrypt(tampered); err == nil {
		t.Fatalf("ciphertext corrompido debe fallar")
	}
}

func TestEncrypt_WithoutMasterKey(t *testing.T) {
	UnsafeResetForTests()
	os.Unsetenv(EnvVar)
	t.Cleanup(UnsafeResetForTests)

	if _, err := Encrypt("x"); err == nil {
		t.Fatalf("sin master key debe fallar")
	}
	if Ready() {
		t.Fatalf("Ready debe ser false sin master key")
	}
}
