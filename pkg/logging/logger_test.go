package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo)
	ctx := ContextWithCorrelationID(context.Background(), "req-1")

	logger.Info(ctx, "hello", "key", "value")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "req-1", entry["correlation_id"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), "kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["msg"])
}

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background())
	id := GetCorrelationID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetCorrelationID(WithCorrelationID(ctx)), "existing id is kept")
	assert.Empty(t, GetCorrelationID(context.Background()))
}

func TestLogAuthEvent_HidesSubject(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo).LogAuthEvent(context.Background(), "login", "someone@example.com", true)

	entry := decodeLine(t, &buf)
	assert.Equal(t, hashSensitiveData("someone@example.com"), entry["subject_hash"])
	assert.NotContains(t, buf.String(), "someone")
	assert.NotContains(t, buf.String(), "example.com")
}

func TestHashSensitiveData(t *testing.T) {
	digest := hashSensitiveData("someone@example.com")
	assert.Len(t, digest, 12)
	assert.Equal(t, digest, hashSensitiveData("someone@example.com"))
	assert.NotEqual(t, digest, hashSensitiveData("other@example.com"))
	assert.NotContains(t, digest, "som")
	assert.Empty(t, hashSensitiveData(""))
}
