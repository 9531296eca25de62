// Package obs contains observability utilities such as logging.
package obs

import (
	"strings"

	"go.uber.org/zap"
)

// Log is a thin key/value wrapper around a zap sugared logger.
type Log struct {
	s *zap.SugaredLogger
}

// Logger is the global structured logger used by the service.
//
// Logger is a no-op until InitLogger is called, so packages may log from tests
// without any setup.
var Logger = Nop()

// InitLogger initializes the global Logger for the given mode.
//
// "production" logs JSON at info level, "development" logs console output at
// debug level, and "test" or "nop" discards everything.
func InitLogger(mode string) error {
	l, err := New(mode)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New builds a Log without touching the global Logger.
func New(mode string) (*Log, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "test", "nop":
		return Nop(), nil
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Log{s: zl.Sugar()}, nil
}

// Nop returns a logger that discards all entries.
func Nop() *Log { return &Log{s: zap.NewNop().Sugar()} }

func (l *Log) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Log) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Log) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Log) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// With returns a child logger that always carries kv.
func (l *Log) With(kv ...any) *Log { return &Log{s: l.s.With(kv...)} }

// Sync flushes buffered entries.
func (l *Log) Sync() { _ = l.s.Sync() }
