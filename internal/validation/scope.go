package validation

import "regexp"

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: deals, deals:create, missions:read, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// Nonce rules: client-generated random token, lowercase hex, minimum 32 chars.
// The upper bound keeps storage bounded without rejecting reasonable clients.
var nonceRe = regexp.MustCompile(`^[0-9a-f]{32,128}$`)

// ValidNonce returns true if the nonce meets the minimum entropy format.
func ValidNonce(nonce string) bool {
	return nonceRe.MatchString(nonce)
}

// Key identifiers: "ak_" followed by lowercase hex. The short prefix form
// clients may transmit is "ak_" + first 8 hex chars.
var keyIDRe = regexp.MustCompile(`^ak_[0-9a-f]{8,61}$`)

// ValidKeyID returns true for a full or prefix-form key identifier.
func ValidKeyID(keyID string) bool {
	return keyIDRe.MatchString(keyID)
}
