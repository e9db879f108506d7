package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("STORAGE_FAILURE").
		In("repository").
		With("operation", "upsert_login").
		Errorf("connection reset")

	errutil.LogError(context.Background(), logger, "operation failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Equal(t, "STORAGE_FAILURE", entry["code"])
	assert.Equal(t, "repository", entry["domain"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(context.Background(), logger, "operation failed", errors.New("standard error"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

func TestAssertHelpers(t *testing.T) {
	err := oops.Code("USER_NOT_FOUND").With("identity", "abc123").Errorf("missing")

	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "identity", "abc123")
}
