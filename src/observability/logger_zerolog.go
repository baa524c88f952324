package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FieldService = "service"

type ctxKey struct{}

// ZerologLogger implementa Logger sobre zerolog. Los campos agregados al contexto viajan
// como un logger hijo guardado en el propio context.
type ZerologLogger struct {
	base zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{base: l}
}

// NewLogger arma el logger del conector: stdout (JSON o consola) y, si hay File,
// una copia rotada con lumberjack.
func NewLogger(cfg config.LogConfig) *ZerologLogger {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	l := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.ServiceName != "" {
		l = l.With().Str(FieldService, cfg.ServiceName).Logger()
	}

	return &ZerologLogger{base: l}
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Zerolog expone el logger base, lo usa el middleware de gin.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.base
}

func (l *ZerologLogger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if child, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return &child
		}
	}
	return &l.base
}

func (l *ZerologLogger) Trace(ctx context.Context, message string,
	fields ...interface{}) Logger {
	l.from(ctx).Trace().Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) Debug(ctx context.Context, message string,
	fields ...interface{}) Logger {
	l.from(ctx).Debug().Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) Info(ctx context.Context, message string,
	fields ...interface{}) Logger {
	l.from(ctx).Info().Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) Warn(ctx context.Context, message string,
	err error, fields ...interface{}) Logger {
	l.from(ctx).Warn().Err(err).Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) Error(ctx context.Context, message string,
	err error, fields ...interface{}) Logger {
	l.from(ctx).Error().Err(err).Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) Fatal(ctx context.Context, message string,
	err error, fields ...interface{}) Logger {
	l.from(ctx).Fatal().Err(err).Fields(fields).Msg(message)
	return l
}

func (l *ZerologLogger) AddFieldsToContext(ctx context.Context,
	fields map[string]string) context.Context {
	builder := l.from(ctx).With()
	for k, v := range fields {
		builder = builder.Str(k, v)
	}
	return context.WithValue(ctx, ctxKey{}, builder.Logger())
}

// NewNopLogger descarta todo; util en tests.
func NewNopLogger() *ZerologLogger {
	return &ZerologLogger{base: zerolog.Nop()}
}
