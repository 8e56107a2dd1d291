package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// NewFromURI selects a session backend from uri:
//
//	memory://
//	file:///var/lib/shopper/sessions
//	redis://[:password@]host:port/db
func NewFromURI(ctx context.Context, uri string, ttl time.Duration) (core.SessionService, error) {
	switch {
	case uri == "" || strings.HasPrefix(uri, "memory://"):
		return NewInMemorySessionService(ttl), nil
	case strings.HasPrefix(uri, "file://"):
		dir := strings.TrimPrefix(uri, "file://")
		if dir == "" {
			return nil, fmt.Errorf("file session uri needs a directory: %q", uri)
		}
		return NewFileSessionService(dir, ttl)
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return NewRedisSessionServiceFromURL(ctx, uri, ttl)
	default:
		return nil, fmt.Errorf("unsupported session uri %q", uri)
	}
}
