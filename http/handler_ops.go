package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bookings/entity"
)

func (s Server) GetOpsBookings(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && !entity.BookingStatus(status).Valid() {
		return entity.NewInvalidInputError("unknown status %q", status)
	}

	bookings, err := s.opsBookingReadModel.AllBookings(c.Request().Context(), status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, bookings)
}

func (s Server) GetOpsBooking(c echo.Context) error {
	booking, err := s.opsBookingReadModel.BookingReadModel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, booking)
}
