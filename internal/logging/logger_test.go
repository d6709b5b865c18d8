package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRequestIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "debug", "json")
	l.SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-1"), "user-1")
	l.LogRequest(ctx, http.MethodGet, "/api/jupiter/tokens", http.StatusBadGateway, 25*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gateway", entry["service"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, float64(502), entry["status"])
	assert.Equal(t, "error", entry["level"])
}

func TestNewLevelAndFormat(t *testing.T) {
	l := New("vaultctl", "warn", "text")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
	_, isText := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)

	l = New("gateway", "bogus", "")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, isJSON := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTraceID(ctx, ""))
	assert.Equal(t, ctx, WithUserID(ctx, ""))
	assert.Empty(t, GetTraceID(ctx))
	assert.Len(t, NewTraceID(), 36)
}
