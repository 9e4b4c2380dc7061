package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/job-triage/internal/storage"
)

// cursors are base64("<unix nanos>|<id>")
func decodeCursor(cursorStr string) (time.Time, string, error) {
	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return time.Time{}, "", err
	}

	at, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(at, "%d", &nanos); err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timestamp in cursor: %w", err)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}

func encodeCursor(at time.Time, id string) string {
	cs := fmt.Sprintf("%d|%s", at.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}
	at, id, err := decodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	return &storage.JobCursor{DateCreated: at, ID: id}, nil
}

func EncodeJobCursor(cursor *storage.JobCursor) string {
	return encodeCursor(cursor.DateCreated, cursor.ID)
}

func DecodeRunCursor(cursorStr string) (*storage.RunCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}
	at, id, err := decodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	return &storage.RunCursor{CreatedAt: at, RunID: id}, nil
}

func EncodeRunCursor(cursor *storage.RunCursor) string {
	return encodeCursor(cursor.CreatedAt, cursor.RunID)
}

// pageSize applies the default of 20 and the cap of 100
func pageSize(n int) int {
	if n <= 0 {
		return 20
	}
	return min(n, 100)
}
