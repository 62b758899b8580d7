package util

import "strings"

// MaskKeyID deja visible solo el prefijo público de un key ID
// ("ak_" + 8 hex); el resto se reemplaza por "…". Los key IDs no son
// secretos pero tampoco hace falta regarlos completos por los logs.
func MaskKeyID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 11 {
		return s
	}
	return s[:11] + "…"
}

// MaskSecret oculta un secreto por completo, conservando solo la longitud
// como pista de diagnóstico.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
