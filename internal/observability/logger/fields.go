package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Origin crea un campo para la dirección de origen del request.
func Origin(v string) zap.Field {
	return zap.String("origin", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - AUTENTICACIÓN
// =================================================================================

// PrincipalID crea un campo para el ID del principal autenticado.
func PrincipalID(v string) zap.Field {
	return zap.String("principal_id", v)
}

// CredentialID crea un campo para el ID de la credencial.
func CredentialID(v string) zap.Field {
	return zap.String("credential_id", v)
}

// KeyID crea un campo para el key identifier de la credencial.
func KeyID(v string) zap.Field {
	return zap.String("key_id", v)
}

// Decision crea un campo para la decisión de autenticación (allow/deny).
func Decision(v string) zap.Field {
	return zap.String("decision", v)
}

// Reason crea un campo para la razón de una denegación.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// Dimension crea un campo para la dimensión de rate limiting.
func Dimension(v string) zap.Field {
	return zap.String("dimension", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
