package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/store/memory"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*memory.Store, *Resolver) {
	t.Helper()
	s := memory.New()
	s.PutPrincipal(&repository.Principal{
		ID: "p1", Name: "Acme", ApprovalStatus: repository.ApprovalApproved, CreatedAt: now,
	})
	s.PutPrincipal(&repository.Principal{
		ID: "p2", Name: "Pendiente SA", ApprovalStatus: repository.ApprovalPending, CreatedAt: now,
	})
	s.PutCredential(&repository.Credential{
		ID: "c1", PrincipalID: "p1", KeyID: "ak_11223344aabbccdd",
		Key:    repository.MACKey{Secret: []byte("s1")},
		Scopes: repository.NewScopeSet(repository.ScopeDealsRead),
		Status: repository.CredentialStatusActive, CreatedAt: now,
	})
	return s, NewResolver(s, s)
}

func TestResolve_FullKeyID(t *testing.T) {
	_, r := seed(t)
	got, err := r.Resolve(context.Background(), "ak_11223344aabbccdd")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("candidata inesperada: %+v", got)
	}
}

func TestResolve_MalformedKeyID(t *testing.T) {
	_, r := seed(t)
	for _, bad := range []string{"", "ak_", "AK_11223344aabbccdd", "pk_11223344", "ak_xyz"} {
		if _, err := r.Resolve(context.Background(), bad); !errors.Is(err, repository.ErrInvalidInput) {
			t.Errorf("%q: se esperaba ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestResolve_UnknownIsNotFound(t *testing.T) {
	_, r := seed(t)
	if _, err := r.Resolve(context.Background(), "ak_ffffffffffffffff"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("se esperaba ErrNotFound, got %v", err)
	}
}

func TestResolve_PrefixReturnsOnlyVettedCandidates(t *testing.T) {
	s, r := seed(t)
	// dos hermanas con el mismo prefijo: una revocada, una de principal
	// no aprobado, una sana
	s.PutCredential(&repository.Credential{
		ID: "c2", PrincipalID: "p1", KeyID: "ak_11223344ffff0001",
		Key:    repository.MACKey{Secret: []byte("s2")},
		Status: repository.CredentialStatusRevoked, CreatedAt: now,
	})
	s.PutCredential(&repository.Credential{
		ID: "c3", PrincipalID: "p2", KeyID: "ak_11223344ffff0002",
		Key:    repository.MACKey{Secret: []byte("s3")},
		Status: repository.CredentialStatusActive, CreatedAt: now,
	})

	got, err := r.Resolve(context.Background(), "ak_11223344")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("solo la candidata activa y aprobada debe volver: %+v", got)
	}
}

func TestResolve_RevokedDegradesToNotFound(t *testing.T) {
	s, r := seed(t)
	if err := s.Revoke(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(context.Background(), "ak_11223344aabbccdd"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("revocada debe resolver como not-found, got %v", err)
	}
}

func TestResolve_InvalidateDropsCache(t *testing.T) {
	s, r := seed(t)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "ak_11223344aabbccdd"); err != nil {
		t.Fatal(err)
	}
	// revocar detrás del cache: sin Invalidate el hit viejo seguiría vivo
	if err := s.Revoke(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	r.Invalidate("ak_11223344aabbccdd")

	if _, err := r.Resolve(ctx, "ak_11223344aabbccdd"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("tras Invalidate la revocación debe verse, got %v", err)
	}
}
