package middlewares

import (
	"context"

	"github.com/dropDatabas3/agentgate/internal/auth"
)

type ctxKey string

const (
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
	// ctxAuthKey guarda el AuthContext del request autenticado
	ctxAuthKey ctxKey = "auth"
)

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// withAuth inyecta el AuthContext en el contexto (interno, usado por RequireSigned)
func withAuth(ctx context.Context, ac *auth.AuthContext) context.Context {
	return context.WithValue(ctx, ctxAuthKey, ac)
}

// GetAuth obtiene el AuthContext del request.
// Retorna nil si la ruta no pasó por RequireSigned.
func GetAuth(ctx context.Context) *auth.AuthContext {
	if v := ctx.Value(ctxAuthKey); v != nil {
		if ac, ok := v.(*auth.AuthContext); ok {
			return ac
		}
	}
	return nil
}

// MustGetAuth obtiene el AuthContext o hace panic.
// Usar solo en rutas donde RequireSigned SIEMPRE se aplica.
func MustGetAuth(ctx context.Context) *auth.AuthContext {
	ac := GetAuth(ctx)
	if ac == nil {
		panic("middlewares: no auth context in request")
	}
	return ac
}
