package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/agentgate/internal/app"
	"github.com/dropDatabas3/agentgate/internal/audit"
	"github.com/dropDatabas3/agentgate/internal/auth"
	"github.com/dropDatabas3/agentgate/internal/auth/credential"
	"github.com/dropDatabas3/agentgate/internal/auth/nonce"
	"github.com/dropDatabas3/agentgate/internal/auth/ratelimit"
	"github.com/dropDatabas3/agentgate/internal/auth/sign"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	"github.com/dropDatabas3/agentgate/internal/security/keyhash"
	"github.com/dropDatabas3/agentgate/internal/store/memory"
)

const (
	testKeyID  = "ak_0badc0de0badc0de0badc0de"
	testSecret = "firma-secreta"
	adminKey   = "llave-admin-larga"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	store.PutPrincipal(&repository.Principal{
		ID: "p1", Name: "Acme", ApprovalStatus: repository.ApprovalApproved, CreatedAt: time.Now(),
	})
	store.PutCredential(&repository.Credential{
		ID: "c1", PrincipalID: "p1", KeyID: testKeyID,
		Key:    repository.MACKey{Secret: []byte(testSecret)},
		Scopes: repository.NewScopeSet(repository.ScopeDealsCreate, repository.ScopeDealsRead),
		Status: repository.CredentialStatusActive, CreatedAt: time.Now(),
	})

	lim := ratelimit.NewMemoryLimiter(ratelimit.Config{})
	t.Cleanup(lim.Close)
	led := nonce.NewLedger(store, nonce.Options{})
	t.Cleanup(led.Close)

	phc, err := keyhash.Hash(keyhash.Default, adminKey)
	require.NoError(t, err)

	c := &app.Container{
		Credentials:  store,
		Principals:   store,
		Nonces:       store,
		AuditRepo:    store,
		Resolver:     credential.NewResolver(store, store),
		Limiter:      lim,
		Ledger:       led,
		Auditor:      audit.NewWriter(store),
		AdminKeyHash: phc,
	}
	c.Orch = auth.NewOrchestrator(c.Resolver, c.Limiter, c.Ledger, c.Auditor, nil)

	srv := httptest.NewServer(New(c))
	t.Cleanup(srv.Close)
	return srv
}

var nonceSeq int

func nextNonce() string {
	nonceSeq++
	return strings.Repeat(fmt.Sprintf("%08x", nonceSeq), 4)
}

func signedRequest(t *testing.T, baseURL, method, path string, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	n := nextNonce()
	sig := sign.ComputeMAC([]byte(testSecret), sign.Request{
		Method: method, Path: path, Timestamp: ts, Nonce: n, Body: body,
	})
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderKeyID, testKeyID)
	req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(auth.HeaderNonce, n)
	req.Header.Set(auth.HeaderSignature, sig)
	return req
}

func TestSignedDealCreate(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"title":"lote de prueba"}`)
	resp, err := http.DefaultClient.Do(signedRequest(t, srv.URL, "POST", "/v1/deals", body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var out struct {
		ID          string `json:"id"`
		PrincipalID string `json:"principal_id"`
		Title       string `json:"title"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "p1", out.PrincipalID)
	require.Equal(t, "lote de prueba", out.Title)
	require.NotEmpty(t, out.ID)
}

func TestUnsignedRequestRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/deals", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var apiErr struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	require.Equal(t, "missing_headers", apiErr.Error)
	require.Equal(t, 1400, apiErr.ErrorCode)
}

func TestReplayThroughHTTP(t *testing.T) {
	srv := newTestServer(t)
	body := []byte(`{"title":"x"}`)

	req := signedRequest(t, srv.URL, "POST", "/v1/deals", body)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// mismo request, byte a byte
	replay, err := http.NewRequest("POST", srv.URL+"/v1/deals", bytes.NewReader(body))
	require.NoError(t, err)
	replay.Header = req.Header.Clone()
	resp, err = http.DefaultClient.Do(replay)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var apiErr struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	require.Equal(t, "nonce_reused", apiErr.Error)
	require.Equal(t, 1409, apiErr.ErrorCode)
}

func TestAdminSurface(t *testing.T) {
	srv := newTestServer(t)

	// sin key: 401
	req, _ := http.NewRequest("GET", srv.URL+"/v1/admin/audit?n=5", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// con key: freeze sobre la credencial
	payload, _ := json.Marshal(map[string]any{
		"dimension": "credential", "key": testKeyID, "duration_seconds": 600,
	})
	req, _ = http.NewRequest("POST", srv.URL+"/v1/admin/freeze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Api-Key", adminKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// la credencial congelada rebota con 429 aunque la firma sea válida
	resp, err = http.DefaultClient.Do(signedRequest(t, srv.URL, "POST", "/v1/deals", []byte(`{"title":"y"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
