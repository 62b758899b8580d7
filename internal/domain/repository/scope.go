package repository

import (
	"sort"
	"strings"
)

// Scope es una capability que una credencial puede ejercer.
// Enumeración fija: "missing scope" se chequea por membresía en un set
// tipado, no comparando strings libres.
type Scope string

const (
	ScopeDealsCreate    Scope = "deals:create"
	ScopeDealsRead      Scope = "deals:read"
	ScopeMissionsCreate Scope = "missions:create"
	ScopeMissionsRead   Scope = "missions:read"
	ScopePayoutsRead    Scope = "payouts:read"
)

// KnownScopes enumera todos los scopes reconocidos.
var KnownScopes = []Scope{
	ScopeDealsCreate,
	ScopeDealsRead,
	ScopeMissionsCreate,
	ScopeMissionsRead,
	ScopePayoutsRead,
}

// ParseScope valida y convierte un string a Scope.
func ParseScope(s string) (Scope, bool) {
	for _, k := range KnownScopes {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ScopeSet es un conjunto de scopes.
type ScopeSet map[Scope]struct{}

// NewScopeSet construye un set desde scopes individuales.
func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// ParseScopeSet construye un set desde strings, ignorando los desconocidos.
func ParseScopeSet(raw []string) ScopeSet {
	set := make(ScopeSet, len(raw))
	for _, r := range raw {
		if s, ok := ParseScope(strings.TrimSpace(r)); ok {
			set[s] = struct{}{}
		}
	}
	return set
}

// Has reporta si el scope está en el set.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// HasAll reporta si todos los scopes requeridos están presentes.
// Retorna el primer scope faltante para diagnóstico.
func (s ScopeSet) HasAll(required ...Scope) (bool, Scope) {
	for _, r := range required {
		if !s.Has(r) {
			return false, r
		}
	}
	return true, ""
}

// Strings retorna los scopes ordenados (para serializar/loguear).
func (s ScopeSet) Strings() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
