package keyhash

import (
	"strings"
	"testing"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(Default, "admin-key-123")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$") {
		t.Fatalf("formato PHC esperado, got %q", phc)
	}
	if !Verify("admin-key-123", phc) {
		t.Fatalf("la key correcta debe verificar")
	}
	if Verify("admin-key-124", phc) {
		t.Fatalf("una key distinta no debe verificar")
	}
	if Verify("", phc) {
		t.Fatalf("key vacía no debe verificar")
	}
}

func TestHash_SaltedOutputsDiffer(t *testing.T) {
	a, err := Hash(Default, "misma")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash(Default, "misma")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("el salt aleatorio debe producir hashes distintos")
	}
	if !Verify("misma", a) || !Verify("misma", b) {
		t.Fatalf("ambos hashes deben verificar")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	for _, bad := range []string{"", "no-phc", "$argon2id$v=19$corto"} {
		if Verify("x", bad) {
			t.Errorf("%q: PHC malformado no debe verificar", bad)
		}
	}
}
