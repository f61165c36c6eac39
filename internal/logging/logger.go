package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options — Service и Version попадают в каждую запись; Output пустой — stderr.
type Options struct {
	Level   string
	Env     string
	Service string
	Version string
	Output  []string
}

type Log struct {
	Base   *zap.Logger
	Level  zap.AtomicLevel
	Closer func()
}

func Init(o Options) (*Log, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(o.Level))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var cfg zap.Config
	if strings.ToLower(o.Env) == "prod" {
		cfg = zap.NewProductionConfig()
		// отметки посещаемости идут пачками в начале занятия, терять их в логе нельзя
		cfg.Sampling = nil
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(o.Output) > 0 {
		cfg.OutputPaths = o.Output
	}
	cfg.InitialFields = map[string]any{}
	if o.Service != "" {
		cfg.InitialFields["service"] = o.Service
	}
	if o.Version != "" {
		cfg.InitialFields["version"] = o.Version
	}

	base, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return &Log{
		Base:   base,
		Level:  lvl,
		Closer: func() { _ = base.Sync() },
	}, nil
}

// Named — логгер подсистемы (notify, jobs, http).
func (l *Log) Named(component string) *zap.Logger { return l.Base.Named(component) }
