package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, DebugLevel).WithFilter("warn+:* debug+:signalr*")
	require.NoError(t, err)

	l.Named("signalr").Debug("socket frame")
	l.Named("processing").Info("event")
	l.Named("processing").Warn("malformed")

	out := buf.String()
	assert.Contains(t, out, "socket frame")
	assert.NotContains(t, out, `"event"`)
	assert.Contains(t, out, "malformed")
}

func TestWithFilter_LevelStillApplies(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, InfoLevel).WithFilter("debug+:*")
	require.NoError(t, err)
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestWithFilter_Empty(t *testing.T) {
	l := New(nil, InfoLevel)
	same, err := l.WithFilter("")
	require.NoError(t, err)
	assert.Same(t, l, same)
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel).Named("ctx")
	ctx := AddToContext(context.Background(), l)
	GetFromContext(ctx).Info("hello")
	assert.True(t, strings.Contains(buf.String(), `"logger":"ctx"`))
	assert.Same(t, Default(), GetFromContext(context.Background()))
}
