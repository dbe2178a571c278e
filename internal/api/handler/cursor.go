package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/photoflow-app/photoflow/internal/jobs"
)

// DecodeJobCursor parses an opaque pagination cursor. An empty string is a
// valid "first page" cursor.
func DecodeJobCursor(cursorStr string) (*jobs.ListCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &jobs.ListCursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        parts[1],
	}, nil
}

// EncodeJobCursor renders a cursor as an opaque base64 token
func EncodeJobCursor(cursor *jobs.ListCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
