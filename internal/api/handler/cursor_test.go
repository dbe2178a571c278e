package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoflow-app/photoflow/internal/jobs"
)

func TestJobCursorRoundTrip(t *testing.T) {
	cursor := &jobs.ListCursor{
		CreatedAt: time.Date(2025, 6, 15, 10, 30, 0, 123456789, time.UTC),
		ID:        "8a0f1a6e-1111-2222-3333-444455556666",
	}

	encoded := EncodeJobCursor(cursor)
	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)

	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.ID, decoded.ID)
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "%%%"},
		{name: "missing separator", cursor: base64.StdEncoding.EncodeToString([]byte("12345"))},
		{name: "non-numeric timestamp", cursor: base64.StdEncoding.EncodeToString([]byte("abc|job-1"))},
		{name: "empty id", cursor: base64.StdEncoding.EncodeToString([]byte("12345|"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}

func TestDecodeJobCursor_EmptyIsFirstPage(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}
