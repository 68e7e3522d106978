package bus

import (
	"context"

	"github.com/yungbote/labtwin-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}
