package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"bookings/auth"
	"bookings/entity"
	"bookings/tracing"
)

type BookingService interface {
	Request(ctx context.Context, actor entity.Actor, req entity.BookingRequest) (entity.Booking, error)
	Get(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error)
	List(ctx context.Context, actor entity.Actor) ([]entity.Booking, error)
	Accept(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error)
	Decline(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error)
	Cancel(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error)
	RequestCompletion(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, entity.IssuedChallenge, error)
	VerifyCompletionCode(ctx context.Context, actor entity.Actor, bookingID, code string) (entity.Booking, error)
	SubmitFeedback(ctx context.Context, actor entity.Actor, bookingID, text string) (entity.Booking, error)
}

type OpsBookingReadModel interface {
	AllBookings(ctx context.Context, status string) ([]entity.OpsBooking, error)
	BookingReadModel(ctx context.Context, bookingID string) (entity.OpsBooking, error)
}

type Server struct {
	addr                string
	e                   *echo.Echo
	bookings            BookingService
	opsBookingReadModel OpsBookingReadModel
}

func NewServer(
	addr string,
	bookings BookingService,
	opsBookingReadModel OpsBookingReadModel,
	authenticator auth.Authenticator,
) *Server {
	if bookings == nil {
		panic("missing bookings")
	}
	if opsBookingReadModel == nil {
		panic("missing opsBookingReadModel")
	}

	e := echoHTTP.NewEcho()
	e.HTTPErrorHandler = HandleError
	e.Use(otelecho.Middleware(tracing.ServiceName))

	server := &Server{
		addr:                addr,
		e:                   e,
		bookings:            bookings,
		opsBookingReadModel: opsBookingReadModel,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("", auth.Middleware(authenticator))

	api.POST("/bookings", server.PostBooking)
	api.GET("/bookings", server.GetBookings)
	api.GET("/bookings/:id", server.GetBooking)
	api.PUT("/bookings/:id/accept", server.PutAccept)
	api.PUT("/bookings/:id/decline", server.PutDecline)
	api.PUT("/bookings/:id/cancel", server.PutCancel)
	api.POST("/bookings/:id/completion-code", server.PostCompletionCode)
	api.POST("/bookings/:id/completion-code/verify", server.PostVerifyCompletionCode)
	api.POST("/bookings/:id/feedback", server.PostFeedback)

	ops := api.Group("/ops", requireRole(entity.RoleAdmin))
	ops.GET("/bookings", server.GetOpsBookings)
	ops.GET("/bookings/:id", server.GetOpsBooking)

	return server
}

// Handler exposes the router, mostly for tests.
func (s Server) Handler() http.Handler {
	return s.e
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.Background())
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := auth.ActorFromContext(c.Request().Context())
			if !ok || actor.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

func actorFrom(c echo.Context) (entity.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return entity.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}
	return actor, nil
}
