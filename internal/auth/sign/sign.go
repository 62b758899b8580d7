// Package sign implements the canonical request representation and the two
// signature schemes the platform accepts.
//
// Scheme MAC (current): pipe-joined canonical string, HMAC-SHA256, hex.
// Scheme public_key (legacy): newline-joined canonical string with hashed
// body, Ed25519, base64.
//
// Las reglas de canonicalización son byte-a-byte: cualquier desviación
// (ej: incluir query string donde el formato legacy la omite) rompe
// silenciosamente a todos los clientes firmantes existentes.
package sign

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

// MaxBodyBytes is the maximum body size considered for signing.
const MaxBodyBytes = 1 << 20 // 1 MiB

// Request son los campos del request que participan en la firma.
type Request struct {
	Method    string
	Path      string // path sin query
	RawQuery  string // query verbatim; "" si el request no traía
	Timestamp int64  // unix seconds, tal como llegó en el header
	Nonce     string
	Body      []byte // bytes exactos transmitidos; nil/empty para requests sin body
}

// canonicalPath: path con query verbatim SOLO si el request original la traía.
func (r Request) canonicalPath() string {
	path := r.Path
	if path == "" {
		path = "/"
	}
	if r.RawQuery != "" {
		path += "?" + r.RawQuery
	}
	return path
}

// CanonicalMAC construye el string canónico del esquema MAC:
//
//	timestamp|nonce|METHOD|path[?query]|body
func CanonicalMAC(r Request) []byte {
	parts := []string{
		strconv.FormatInt(r.Timestamp, 10),
		r.Nonce,
		strings.ToUpper(r.Method),
		r.canonicalPath(),
		string(r.Body),
	}
	return []byte(strings.Join(parts, "|"))
}

// ComputeMAC firma el canónico MAC y retorna la firma hex.
func ComputeMAC(secret []byte, r Request) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(CanonicalMAC(r))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyMAC verifica una firma hex contra el secreto. Comparación en tiempo
// constante; encoding inválido cuenta como firma inválida, nunca error.
func VerifyMAC(secret []byte, r Request, providedHex string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(providedHex))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(CanonicalMAC(r))
	return hmac.Equal(provided, mac.Sum(nil))
}

// CanonicalLegacy construye el string canónico del esquema legacy:
//
//	METHOD \n path \n timestamp \n nonce \n sha256hex(body) \n
//
// El body va hasheado, no embebido; el path NO lleva query.
func CanonicalLegacy(r Request) []byte {
	bodyHash := sha256.Sum256(r.Body)
	path := r.Path
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(r.Nonce)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(bodyHash[:]))
	b.WriteByte('\n')
	return []byte(b.String())
}

// SignLegacy firma el canónico legacy con Ed25519 y retorna base64.
// Existe para tests y SDKs de cliente; el servidor solo verifica.
func SignLegacy(priv ed25519.PrivateKey, r Request) string {
	sig := ed25519.Sign(priv, CanonicalLegacy(r))
	return base64.StdEncoding.EncodeToString(sig)
}

// VerifyLegacy verifica una firma base64 Ed25519. Material de clave o
// encoding malformados cuentan como firma inválida.
func VerifyLegacy(pub ed25519.PublicKey, r Request, providedB64 string) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(providedB64))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, CanonicalLegacy(r), sig)
}

// Verify despacha por la variante etiquetada de la credencial.
// El switch es exhaustivo: una variante desconocida nunca pasa.
func Verify(key repository.CredentialKey, r Request, provided string) bool {
	switch k := key.(type) {
	case repository.MACKey:
		return VerifyMAC(k.Secret, r, provided)
	case repository.PublicKey:
		return VerifyLegacy(k.Material, r, provided)
	default:
		return false
	}
}
