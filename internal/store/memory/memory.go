// Package memory implementa los repositorios en memoria, para desarrollo y
// tests. Misma semántica que el driver pg: el insert del ledger es atómico
// bajo su mutex y la unicidad (principal, nonce) es la señal de accept.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
)

// Store agrupa los repositorios en memoria.
type Store struct {
	mu          sync.RWMutex
	credentials map[string]*repository.Credential // por ID
	principals  map[string]*repository.Principal
	nonces      map[string]time.Time // "principal|nonce" → first_seen
	audit       []*repository.AuditRecord
}

// New construye un Store vacío.
func New() *Store {
	return &Store{
		credentials: make(map[string]*repository.Credential),
		principals:  make(map[string]*repository.Principal),
		nonces:      make(map[string]time.Time),
	}
}

// ─── seeding (tests / dev) ───

// PutCredential registra una credencial.
func (s *Store) PutCredential(c *repository.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.credentials[c.ID] = &cp
}

// PutPrincipal registra un principal.
func (s *Store) PutPrincipal(p *repository.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.principals[p.ID] = &cp
}

// ─── CredentialRepository ───

func (s *Store) FindByKeyID(_ context.Context, keyID string) (*repository.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.credentials {
		if c.KeyID == keyID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindByKeyPrefix(_ context.Context, prefix string) ([]*repository.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*repository.Credential
	for _, c := range s.credentials {
		if strings.HasPrefix(c.KeyID, prefix) && c.Status == repository.CredentialStatusActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (s *Store) TouchLastUsed(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[credentialID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	c.LastUsedAt = &now
	return nil
}

func (s *Store) Revoke(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[credentialID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Status = repository.CredentialStatusRevoked
	return nil
}

// ─── PrincipalRepository ───

func (s *Store) FindByID(_ context.Context, id string) (*repository.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ─── NonceRepository ───

func nonceKey(principalID, nonce string) string { return principalID + "|" + nonce }

func (s *Store) Record(_ context.Context, principalID, nonce string, seenAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := nonceKey(principalID, nonce)
	if _, seen := s.nonces[k]; seen {
		return false, nil
	}
	s.nonces[k] = seenAt.UTC()
	return true, nil
}

func (s *Store) Recent(_ context.Context, cutoff time.Time) ([]repository.NonceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []repository.NonceRecord
	for k, seen := range s.nonces {
		if seen.Before(cutoff) {
			continue
		}
		principalID, nonce, _ := strings.Cut(k, "|")
		out = append(out, repository.NonceRecord{PrincipalID: principalID, Nonce: nonce, FirstSeenAt: seen})
	}
	return out, nil
}

func (s *Store) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, seen := range s.nonces {
		if seen.Before(cutoff) {
			delete(s.nonces, k)
			n++
		}
	}
	return n, nil
}

// ─── AuditRepository ───

func (s *Store) Append(_ context.Context, rec *repository.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *Store) Tail(_ context.Context, n int) ([]*repository.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.audit) {
		n = len(s.audit)
	}
	out := make([]*repository.AuditRecord, 0, n)
	for i := len(s.audit) - 1; i >= 0 && len(out) < n; i-- {
		cp := *s.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}
