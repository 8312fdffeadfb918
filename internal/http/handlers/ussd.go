package handlers

import (
	"context"
	"net/http"
	"strings"

	"busussd/internal/ussd"

	"github.com/gin-gonic/gin"
)

type customerForm struct {
	SessionID   string `form:"sessionId"`
	ServiceCode string `form:"serviceCode"`
	PhoneNumber string `form:"phoneNumber"`
	Text        string `form:"text"`
}

type operatorForm struct {
	SessionID   string `form:"sessionId"`
	PhoneNumber string `form:"phoneNumber"`
	Text        string `form:"text"`
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.QueryTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.QueryTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// writeReply sends the CON/END body. The gateway reads the body even on
// errors, so every reply is a 200.
func writeReply(c *gin.Context, r ussd.Reply) {
	c.String(http.StatusOK, r.String())
}

// POST /ussd
func (h *Handler) CustomerUSSD(c *gin.Context) {
	var form customerForm
	if err := c.ShouldBind(&form); err != nil || strings.TrimSpace(form.SessionID) == "" {
		writeReply(c, ussd.End("Invalid request."))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	writeReply(c, h.Customer.Handle(ctx, ussd.CustomerRequest{
		SessionID:   form.SessionID,
		ServiceCode: form.ServiceCode,
		PhoneNumber: form.PhoneNumber,
		Text:        form.Text,
	}))
}

// POST /ussd-ops
func (h *Handler) OperatorUSSD(c *gin.Context) {
	var form operatorForm
	if err := c.ShouldBind(&form); err != nil || strings.TrimSpace(form.SessionID) == "" {
		writeReply(c, ussd.End("Invalid request."))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	writeReply(c, h.Operator.Handle(ctx, ussd.OperatorRequest{
		SessionID:   form.SessionID,
		PhoneNumber: form.PhoneNumber,
		Text:        form.Text,
	}))
}
