package bus

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Invalidation tells every instance to drop cached journey views. All=true
// flushes everything; otherwise only JourneyID is dropped. Origin identifies
// the publishing instance so it can skip its own echo.
type Invalidation struct {
	JourneyID uuid.UUID `json:"journey_id,omitempty"`
	All       bool      `json:"all,omitempty"`
	Origin    string    `json:"origin"`
}

type Bus interface {
	Publish(ctx context.Context, msg Invalidation) error
	StartForwarder(ctx context.Context, onMsg func(m Invalidation)) error
	Close() error
}

func (m Invalidation) Scope() string {
	if m.All {
		return "all"
	}
	return "journey"
}

func normalizeChannel(ch string) string {
	ch = strings.TrimSpace(ch)
	if ch == "" {
		return "journey-cache-invalidation"
	}
	return ch
}
