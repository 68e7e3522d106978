package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

type requestDataKey struct{}

// RequestData is the authenticated caller resolved from the bearer token.
type RequestData struct {
	UserID uuid.UUID
	Role   string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
