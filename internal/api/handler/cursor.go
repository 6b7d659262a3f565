package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rookiemaniesh/trackaro/internal/api/storage"
)

// DecodeMessageCursor parses an opaque pagination cursor. An empty cursor
// means "start from the newest message".
func DecodeMessageCursor(cursorStr string) (*storage.MessageCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.MessageCursor{
		CreatedAt: time.Unix(0, createdAt),
		MessageID: parts[1],
	}, nil
}

// EncodeMessageCursor produces the opaque cursor for a page boundary
func EncodeMessageCursor(cursor *storage.MessageCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.MessageID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
