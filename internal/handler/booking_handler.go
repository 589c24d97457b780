package handler

import (
	"errors"
	"net/http"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/dto"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
	"github.com/labstack/echo/v4"
)

type BookingHandler struct {
	svc       service.BookingService
	lifecycle service.LifecycleService
}

func NewBookingHandler(svc service.BookingService, lifecycle service.LifecycleService) *BookingHandler {
	return &BookingHandler{svc: svc, lifecycle: lifecycle}
}

func (h *BookingHandler) RegisterRoutes(e *echo.Echo) {
	queues := e.Group("/api/v1/queues")
	queues.POST("/:id/holds", h.HoldBlock)
	queues.GET("/:id/taken-blocks", h.TakenBlocks)
	queues.POST("/:id/bookings", h.CreateBooking)
	queues.GET("/:id/bookings", h.ListBookings)

	bookings := e.Group("/api/v1/bookings")
	bookings.GET("/:id", h.GetBooking)
	bookings.POST("/:id/confirm", h.ConfirmBooking)
	bookings.DELETE("/:id", h.CancelBooking)
	bookings.POST("/:id/process", h.ProcessBooking)
	bookings.POST("/:id/transfer", h.TransferBooking)
	bookings.PATCH("/:id", h.EditBooking)
}

func (h *BookingHandler) HoldBlock(c echo.Context) error {
	var req dto.HoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	hold, err := h.svc.HoldBlock(c.Request().Context(), req.ToInput(c.Param("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToHoldResponse(hold))
}

func (h *BookingHandler) TakenBlocks(c echo.Context) error {
	usages, err := h.svc.TakenBlocks(c.Request().Context(), c.Param("id"), c.QueryParam("date"))
	if err != nil {
		return toHTTPError(err)
	}
	if usages == nil {
		usages = []models.BlockUsage{}
	}
	return c.JSON(http.StatusOK, usages)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req dto.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.svc.CreateBooking(c.Request().Context(), req.ToInput(c.Param("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ListBookings(c echo.Context) error {
	var status *models.BookingStatus
	if s := c.QueryParam("status"); s != "" {
		bs := models.BookingStatus(s)
		status = &bs
	}

	bookings, err := h.svc.ListBookings(c.Request().Context(), c.Param("id"), c.QueryParam("date"), status)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponses(bookings))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	booking, err := h.svc.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	var req dto.ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.lifecycle.Confirm(c.Request().Context(), c.Param("id"), req.ToInput())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

// CancelBooking takes the actor from the query string since DELETE bodies are
// often dropped by proxies.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	booking, err := h.lifecycle.Cancel(c.Request().Context(), c.Param("id"), c.QueryParam("actor"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) ProcessBooking(c echo.Context) error {
	var req dto.ActorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.lifecycle.Process(c.Request().Context(), c.Param("id"), req.Actor)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) TransferBooking(c echo.Context) error {
	var req dto.TransferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.lifecycle.Transfer(c.Request().Context(), c.Param("id"), req.ToInput())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *BookingHandler) EditBooking(c echo.Context) error {
	var req dto.EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	booking, err := h.lifecycle.Edit(c.Request().Context(), c.Param("id"), req.ToInput())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

// toHTTPError maps service error kinds to status codes. Internal details are
// not echoed to the client.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrInternal):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrState):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
