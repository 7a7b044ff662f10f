package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/battled/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)

	sampled := newSampledCore(core, SamplingConfig{Enabled: false})

	assert.Equal(t, core, sampled)
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{
		zap: zap.New(newSampledCore(core, SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Minute),
			Initial:    1,
			Thereafter: 0,
		})),
		config: NewDefaultConfig(),
	}

	for i := 0; i < 50; i++ {
		logger.Error(context.Background(), "snapshot load failed")
	}

	assert.Len(t, observed.FilterMessage("snapshot load failed").All(), 50)
}

func TestNewSampledCore_InfoSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{
		zap: zap.New(newSampledCore(core, SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Minute),
			Initial:    5,
			Thereafter: 0,
		})),
		config: NewDefaultConfig(),
	}

	for i := 0; i < 50; i++ {
		logger.Info(context.Background(), "http request")
	}

	assert.Len(t, observed.FilterMessage("http request").All(), 5)
}
