package sign

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

func baseRequest() Request {
	return Request{
		Method:    "POST",
		Path:      "/v1/deals",
		RawQuery:  "",
		Timestamp: 1700000000,
		Nonce:     strings.Repeat("ab", 16),
		Body:      []byte(`{"title":"demo"}`),
	}
}

func TestCanonicalMAC_Format(t *testing.T) {
	r := baseRequest()
	got := string(CanonicalMAC(r))
	want := "1700000000|" + r.Nonce + "|POST|/v1/deals|" + string(r.Body)
	if got != want {
		t.Fatalf("canonical mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestCanonicalMAC_QueryVerbatimOnlyWhenPresent(t *testing.T) {
	r := baseRequest()
	r.Method = "GET"
	r.Body = nil

	// sin query: el path va pelado, sin '?'
	if got := string(CanonicalMAC(r)); strings.Contains(got, "?") {
		t.Fatalf("sin query no debe haber '?': %q", got)
	}

	// con query: verbatim, sin reordenar ni re-encodear
	r.RawQuery = "b=2&a=%C3%B1"
	got := string(CanonicalMAC(r))
	if !strings.Contains(got, "|/v1/deals?b=2&a=%C3%B1|") {
		t.Fatalf("query no verbatim: %q", got)
	}
}

func TestCanonicalMAC_EmptyPathBecomesRoot(t *testing.T) {
	r := baseRequest()
	r.Path = ""
	if !strings.Contains(string(CanonicalMAC(r)), "|/|") {
		t.Fatalf("path vacío debe canonicalizar a /: %q", CanonicalMAC(r))
	}
}

func TestComputeMAC_Deterministic(t *testing.T) {
	secret := []byte("super-secreta")
	r := baseRequest()
	a := ComputeMAC(secret, r)
	b := ComputeMAC(secret, r)
	if a != b {
		t.Fatalf("misma entrada, firmas distintas: %s vs %s", a, b)
	}
	if !VerifyMAC(secret, r, a) {
		t.Fatalf("la firma propia no verifica")
	}
}

func TestVerifyMAC_TamperSensitivity(t *testing.T) {
	secret := []byte("super-secreta")
	r := baseRequest()
	sig := ComputeMAC(secret, r)

	mutations := map[string]Request{}

	m := r
	m.Method = "PUT"
	mutations["method"] = m

	m = r
	m.Path = "/v1/deals/x"
	mutations["path"] = m

	m = r
	m.RawQuery = "a=1"
	mutations["query"] = m

	m = r
	m.Timestamp++
	mutations["timestamp"] = m

	m = r
	m.Nonce = strings.Repeat("cd", 16)
	mutations["nonce"] = m

	m = r
	m.Body = []byte(`{"title":"otro"}`)
	mutations["body"] = m

	for name, mut := range mutations {
		if VerifyMAC(secret, mut, sig) {
			t.Errorf("mutación de %s pasó la verificación", name)
		}
	}
	if VerifyMAC([]byte("otra-clave"), r, sig) {
		t.Errorf("otra clave pasó la verificación")
	}
}

func TestVerifyMAC_BadEncodingIsInvalidNotError(t *testing.T) {
	if VerifyMAC([]byte("k"), baseRequest(), "no-es-hex-zz") {
		t.Fatalf("encoding inválido debe contar como firma inválida")
	}
	if VerifyMAC([]byte("k"), baseRequest(), "") {
		t.Fatalf("firma vacía debe fallar")
	}
}

func TestCanonicalLegacy_Format(t *testing.T) {
	r := baseRequest()
	r.RawQuery = "ignored=yes" // legacy NO incluye query
	got := string(CanonicalLegacy(r))

	lines := strings.Split(got, "\n")
	// trailing newline => último elemento vacío
	if len(lines) != 6 || lines[5] != "" {
		t.Fatalf("se esperaban 5 líneas + newline final, got %d: %q", len(lines), got)
	}
	if lines[0] != "POST" || lines[1] != "/v1/deals" || lines[2] != "1700000000" || lines[3] != r.Nonce {
		t.Fatalf("líneas inesperadas: %q", lines[:4])
	}
	if len(lines[4]) != 64 {
		t.Fatalf("el body va como sha256 hex (64 chars), got %d", len(lines[4]))
	}
	if strings.Contains(got, "ignored") {
		t.Fatalf("legacy no debe incluir query: %q", got)
	}
}

func TestLegacySignVerify_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	r := baseRequest()
	sig := SignLegacy(priv, r)

	if !VerifyLegacy(pub, r, sig) {
		t.Fatalf("firma legítima no verifica")
	}
	r.Body = []byte("tampered")
	if VerifyLegacy(pub, r, sig) {
		t.Fatalf("body alterado pasó la verificación")
	}
}

func TestVerifyLegacy_MalformedInputs(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	r := baseRequest()
	sig := SignLegacy(priv, r)

	if VerifyLegacy(pub[:10], r, sig) {
		t.Fatalf("clave truncada no debe verificar (ni panickear)")
	}
	if VerifyLegacy(pub, r, "!!!no-base64!!!") {
		t.Fatalf("base64 inválido debe contar como firma inválida")
	}
	if VerifyLegacy(pub, r, "QUJD") { // base64 válido, tamaño incorrecto
		t.Fatalf("firma de tamaño incorrecto debe fallar")
	}
}

func TestVerify_DispatchesByKeyVariant(t *testing.T) {
	r := baseRequest()
	secret := []byte("s3cr3t")
	macSig := ComputeMAC(secret, r)

	pub, priv, _ := ed25519.GenerateKey(nil)
	legacySig := SignLegacy(priv, r)

	if !Verify(repository.MACKey{Secret: secret}, r, macSig) {
		t.Fatalf("MACKey no despacha a VerifyMAC")
	}
	if !Verify(repository.PublicKey{Material: pub}, r, legacySig) {
		t.Fatalf("PublicKey no despacha a VerifyLegacy")
	}
	// firmas cruzadas entre esquemas jamás verifican
	if Verify(repository.MACKey{Secret: secret}, r, legacySig) {
		t.Fatalf("firma legacy pasó contra MACKey")
	}
	if Verify(repository.PublicKey{Material: pub}, r, macSig) {
		t.Fatalf("firma MAC pasó contra PublicKey")
	}
	if Verify(nil, r, macSig) {
		t.Fatalf("variante desconocida debe fallar cerrado")
	}
}
