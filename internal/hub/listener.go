package hub

import (
	"time"

	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/types"
)

// listener is a (type, source) subscription, optionally gated on a
// responseID filter that makes it one-shot (spec §3).
type listener struct {
	id             uint64
	owner          string
	eventType      types.EventType
	source         types.EventSource
	responseFilter string // "" unless this is a one-shot responseID-gated listener
	handler        extension.HandlerFunc
}

func (l *listener) matches(e *types.Event) bool {
	if !e.MatchesType(l.eventType) || !e.MatchesSource(l.source) {
		return false
	}
	if l.responseFilter != "" && l.responseFilter != e.ResponseID {
		return false
	}
	return true
}

// responseListener is the one-shot, triggerID-keyed registration made via
// RegisterResponseListener, separate from the (type,source) listener table
// because it carries a timeout timer instead of a selector.
type responseListener struct {
	owner     string
	triggerID string
	handler   extension.ResponseHandlerFunc
	timer     *time.Timer
	fired     bool
}
