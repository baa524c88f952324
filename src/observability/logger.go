package observability

import "context"

// Logger es el contrato de logging de todo el conector. Warn, Error y Fatal reciben el
// error aparte de los campos; fields son pares clave/valor.
type Logger interface {
	Trace(ctx context.Context, message string, fields ...interface{}) Logger

	Debug(ctx context.Context, message string, fields ...interface{}) Logger

	Info(ctx context.Context, message string, fields ...interface{}) Logger

	Warn(ctx context.Context, message string, err error, fields ...interface{}) Logger

	Error(ctx context.Context, message string, err error, fields ...interface{}) Logger

	Fatal(ctx context.Context, message string, err error, fields ...interface{}) Logger

	// AddFieldsToContext devuelve un contexto cuyos logs llevan siempre estos campos.
	AddFieldsToContext(ctx context.Context, fields map[string]string) context.Context
}

var _ Logger = (*ZerologLogger)(nil)
