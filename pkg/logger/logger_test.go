package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})

	l.WithFields(map[string]interface{}{"stage": "matcher"}).Info("stage finished", "candidates", 3)
	out := buf.String()
	assert.Contains(t, out, `"stage":"matcher"`)
	assert.Contains(t, out, `"candidates":3`)
	assert.Contains(t, out, `"message":"stage finished"`)

	buf.Reset()
	l.Error(errors.New("boom"), "stage failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Output: &buf, JSON: true})
	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	l.WithContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
