package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"bookings/entity"
)

type ctxKey int

const actorKey ctxKey = iota

func ContextWithActor(ctx context.Context, actor entity.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (entity.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(entity.Actor)
	return actor, ok
}

// Middleware rejects requests without a valid bearer token and puts the actor
// into the request context.
func Middleware(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			actor, err := a.ParseToken(tokenStr)
			if err != nil {
				log.FromContext(c.Request().Context()).WithError(err).Debug("Rejected token")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := ContextWithActor(c.Request().Context(), actor)
			ctx = log.ToContext(ctx, log.FromContext(ctx).WithField("actor", actor.Username))
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
