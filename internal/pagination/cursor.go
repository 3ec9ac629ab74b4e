// Package pagination holds the keyset cursor shared by every
// (created_at, id) ordered listing.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a keyset position: the row's created_at and id
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode renders the cursor as an opaque token
func (c Cursor) Encode() string {
	cs := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}

// Decode parses a token produced by Cursor.Encode. An empty token yields a
// nil cursor. The id must be a UUID since it is compared against uuid
// columns.
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: bad format", ErrInvalidCursor)
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %w", ErrInvalidCursor, err)
	}

	if _, err := uuid.Parse(parts[1]); err != nil {
		return nil, fmt.Errorf("%w: bad id: %w", ErrInvalidCursor, err)
	}

	return &Cursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ID:        parts[1],
	}, nil
}
