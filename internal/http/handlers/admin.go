package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"busussd/internal/domain"
	"busussd/internal/domain/models"
	"busussd/internal/http/middleware"
	"busussd/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createOperatorRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type createBusRequest struct {
	Route         string `json:"route"`
	OperatorID    int64  `json:"operator_id"`
	DepartureTime string `json:"departure_time"`
	TotalSeats    int    `json:"total_seats"`
	Price         int64  `json:"price"`
}

func (h *Handler) adminError(c *gin.Context, action string, err error) {
	if !domain.IsValidation(err) && !domain.IsNotFound(err) && !domain.IsConflict(err) {
		h.Log.Error("admin request failed",
			zap.String("action", action),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
	}
	RespondDomainError(c, err)
}

func (h *Handler) audit(c *gin.Context, action string, fields ...zap.Field) {
	subject := ""
	if rc, ok := middleware.Caller(c); ok {
		subject = rc.Subject
	}
	utils.LogEvent(c.Request.Context(), h.Log, "admin", action, "admin change",
		append(fields, zap.String("subject", subject))...)
}

func busIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ValidationError{Field: "id", Msg: "invalid bus id"}
	}
	return id, nil
}

// POST /api/admin/operators
func (h *Handler) CreateOperator(c *gin.Context) {
	var req createOperatorRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		RespondDomainError(c, domain.ValidationError{Field: "name", Msg: "required"})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	op, err := h.Auth.Register(ctx, name, req.PIN)
	if err != nil {
		h.adminError(c, "create_operator", err)
		return
	}
	h.audit(c, "create_operator", zap.Int64("operator_id", op.ID))
	c.JSON(http.StatusCreated, op)
}

// POST /api/admin/buses
func (h *Handler) CreateBus(c *gin.Context) {
	var req createBusRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	departure, err := time.Parse(time.RFC3339, strings.TrimSpace(req.DepartureTime))
	switch {
	case err != nil:
		RespondDomainError(c, domain.ValidationError{Field: "departure_time", Msg: "must be RFC3339"})
		return
	case strings.TrimSpace(req.Route) == "":
		RespondDomainError(c, domain.ValidationError{Field: "route", Msg: "required"})
		return
	case req.OperatorID <= 0:
		RespondDomainError(c, domain.ValidationError{Field: "operator_id", Msg: "required"})
		return
	case req.TotalSeats <= 0:
		RespondDomainError(c, domain.ValidationError{Field: "total_seats", Msg: "must be positive"})
		return
	case req.Price < 0:
		RespondDomainError(c, domain.ValidationError{Field: "price", Msg: "cannot be negative"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	bus, err := h.Store.CreateBus(ctx, models.NewBus{
		Route:         strings.TrimSpace(req.Route),
		OperatorID:    req.OperatorID,
		DepartureTime: departure,
		TotalSeats:    req.TotalSeats,
		Price:         req.Price,
	})
	if err != nil {
		h.adminError(c, "create_bus", err)
		return
	}
	h.audit(c, "create_bus", zap.Int64("bus_id", bus.ID))
	c.JSON(http.StatusCreated, bus)
}

// GET /api/admin/buses/:id/bookings
func (h *Handler) ListBusBookings(c *gin.Context) {
	busID, err := busIDParam(c)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.Store.GetBus(ctx, busID); err != nil {
		h.adminError(c, "list_bookings", err)
		return
	}
	bookings, err := h.Store.ListBusBookings(ctx, busID)
	if err != nil {
		h.adminError(c, "list_bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus_id": busID, "bookings": bookings})
}

// GET /api/admin/buses/:id/manifest
func (h *Handler) BusManifest(c *gin.Context) {
	busID, err := busIDParam(c)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	pdf, filename, err := h.Manifest.Generate(ctx, busID)
	if err != nil {
		h.adminError(c, "manifest", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
