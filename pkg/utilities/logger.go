package utilities

import (
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings. Parsed with the LOG_ prefix by the app config.
type Config struct {
	Level  string        `env:"LEVEL"`
	Dev    bool          `env:"DEV"`
	File   string        `env:"FILE"`
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"168h"`
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		if c.Dev {
			c.Level = "debug"
		} else {
			c.Level = "info"
		}
	}
	return c
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes and returns a *zap.Logger
func Init(cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()
	lvl := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		w, err := newRotatingWriter(cfg.File, cfg.MaxAge)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, w)
	}
	return New(out, lvl), nil
}

// New builds a JSON logger writing to w. Tests use it with a buffer.
func New(w io.Writer, lvl zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...)
}

// newRotatingWriter rotates daily into path.YYYYMMDD and keeps path as a symlink
// to the current file.
func newRotatingWriter(path string, maxAge time.Duration) (io.Writer, error) {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	w, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return w, nil
}
