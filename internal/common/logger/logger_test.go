package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": "generate-tour"})

	log.Info("tour generated", map[string]interface{}{"stops": 5})
	log.WithError(errors.New("boom")).Error("failed", nil)
	log.Warn("corpus", map[string]interface{}{"cause": errors.New("timeout")})

	entries := logs.All()
	assert.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "generate-tour", first["taskType"])
	assert.EqualValues(t, 5, first["stops"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "timeout", entries[2].ContextMap()["cause"])
}

func TestNewStructured_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		NewStructured("debug", "json").Debug("hello", nil)
		NewStructured("info", "console").With(map[string]interface{}{"a": 1}).Info("hello", nil)
		NewNoOpLogger().Error("ignored", nil)
	})
}
