package middlewares

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/dropDatabas3/agentgate/internal/auth"
	"github.com/dropDatabas3/agentgate/internal/auth/sign"
	"github.com/dropDatabas3/agentgate/internal/domain/repository"
	httpx "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

var errBodyTooLarge = errors.New("body exceeds size limit")

// RequireSigned autentica el request firmado completo antes de pasar al
// handler: headers, timestamp, credencial, rate limits, firma y nonce.
// operation marca la ruta como operación sensible ("" si no aplica) y
// required son los scopes que la credencial debe tener.
// En caso de denegación escribe la respuesta opaca y corta la cadena.
func RequireSigned(orch *auth.Orchestrator, operation string, required ...repository.Scope) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := GetRequestID(r.Context())

			body, err := readBody(r)
			if err != nil {
				httpx.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", 1413)
				return
			}

			in := auth.Input{
				RequestID: rid,
				Origin:    ClientIP(r),
				Method:    r.Method,
				Path:      r.URL.Path,
				RawQuery:  r.URL.RawQuery,
				Operation: operation,
				KeyID:     r.Header.Get(auth.HeaderKeyID),
				Timestamp: r.Header.Get(auth.HeaderTimestamp),
				Nonce:     r.Header.Get(auth.HeaderNonce),
				Signature: r.Header.Get(auth.HeaderSignature),
				Body:      body,
			}

			ac, denial := orch.Authenticate(r.Context(), in, required...)
			if denial != nil {
				httpx.WriteDenial(w, denial)
				return
			}

			logger.From(r.Context()).Debug("signed request authenticated",
				logger.PrincipalID(ac.PrincipalID),
				logger.CredentialID(ac.CredentialID),
			)
			next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), ac)))
		})
	}
}

// readBody consume el body completo con tope de tamaño y lo repone para
// que el handler pueda leerlo de nuevo.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, sign.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > sign.MaxBodyBytes {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
