package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below ErrorLevel, which keeps per-request
// logs on the prediction route bounded under load. Errors always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errs := &filteredCore{Core: core, accept: zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})}
	rest := &filteredCore{Core: core, accept: zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l < zapcore.ErrorLevel
	})}

	return zapcore.NewTee(errs, zapcore.NewSamplerWithOptions(
		rest,
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	))
}

// filteredCore narrows core to the levels accept allows.
type filteredCore struct {
	zapcore.Core
	accept zapcore.LevelEnabler
}

func (c *filteredCore) Enabled(lvl zapcore.Level) bool {
	return c.accept.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *filteredCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.accept.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *filteredCore) With(fields []zapcore.Field) zapcore.Core {
	return &filteredCore{Core: c.Core.With(fields), accept: c.accept}
}
