// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects the logger's level, encoding and destination.
type Options struct {
	Level  string    // debug, info, warn or error; default info
	Format string    // text or json; default text
	Output io.Writer // default os.Stderr
}

var (
	globalMu sync.RWMutex
	global   = zap.NewNop()
)

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", opts.Format, FormatText, FormatJSON)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)
	return zap.New(core), nil
}

// L returns the global logger. It discards everything until SetGlobal is
// called.
func L() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the global logger. A nil logger restores the no-op one.
func SetGlobal(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}
