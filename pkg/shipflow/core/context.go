package core

import (
	"context"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

type ctxKey string

const (
	CtxKeyUsername ctxKey = ctxKey("username")
	CtxKeyActorID  ctxKey = ctxKey("actorId")
	CtxKeyTickID   ctxKey = ctxKey("tickId")
)

// ActorFromContext returns the authenticated actor, or an empty id.
func ActorFromContext(ctx context.Context) domain.ActorID {
	if v, ok := ctx.Value(CtxKeyActorID).(domain.ActorID); ok {
		return v
	}
	return ""
}

func UsernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUsername).(string)
	return v
}
