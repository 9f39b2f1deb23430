package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"bookings/entity"
	"bookings/lifecycle"
)

type bookingResponse struct {
	entity.Booking
	AllowedActions []entity.BookingAction `json:"allowed_actions"`
}

func newBookingResponse(booking entity.Booking, viewer entity.Actor) bookingResponse {
	actions := lifecycle.ActionsFor(booking, viewer)
	if actions == nil {
		actions = []entity.BookingAction{}
	}

	return bookingResponse{
		Booking:        booking,
		AllowedActions: actions,
	}
}

type completionCodeResponse struct {
	Booking     bookingResponse `json:"booking"`
	ChallengeID string          `json:"challenge_id"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

type verifyCompletionCodeRequest struct {
	Code string `json:"code"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s Server) PostBooking(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var request entity.BookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	booking, err := s.bookings.Request(c.Request().Context(), actor, request)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newBookingResponse(booking, actor))
}

func (s Server) GetBookings(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	bookings, err := s.bookings.List(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, lo.Map(bookings, func(b entity.Booking, _ int) bookingResponse {
		return newBookingResponse(b, actor)
	}))
}

func (s Server) GetBooking(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	booking, err := s.bookings.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, actor))
}

func (s Server) PutAccept(c echo.Context) error {
	return s.transition(c, s.bookings.Accept)
}

func (s Server) PutDecline(c echo.Context) error {
	return s.transition(c, s.bookings.Decline)
}

func (s Server) PutCancel(c echo.Context) error {
	return s.transition(c, s.bookings.Cancel)
}

func (s Server) PostCompletionCode(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	booking, issued, err := s.bookings.RequestCompletion(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	resp := completionCodeResponse{
		Booking:     newBookingResponse(booking, actor),
		ChallengeID: issued.ChallengeID,
	}
	if !issued.ExpiresAt.IsZero() {
		resp.ExpiresAt = &issued.ExpiresAt
	}

	return c.JSON(http.StatusOK, resp)
}

func (s Server) PostVerifyCompletionCode(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var request verifyCompletionCodeRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	booking, err := s.bookings.VerifyCompletionCode(c.Request().Context(), actor, c.Param("id"), request.Code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, actor))
}

func (s Server) PostFeedback(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var request feedbackRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	booking, err := s.bookings.SubmitFeedback(c.Request().Context(), actor, c.Param("id"), request.Feedback)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, actor))
}

func (s Server) transition(
	c echo.Context,
	fn func(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error),
) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	booking, err := fn(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, actor))
}
