package handlers

import (
	"errors"
	"io"
	"net/http"

	"pagoda/models"
	"pagoda/services/pages"
	"pagoda/services/reservation"
	"pagoda/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PageHandler exposes hosted booking pages over HTTP.
type PageHandler struct {
	Registry *pages.Registry
}

func NewPageHandler(registry *pages.Registry) *PageHandler {
	return &PageHandler{Registry: registry}
}

// OpenPage starts a booking page for the selected light.
func (h *PageHandler) OpenPage(c *gin.Context) {
	var req models.OpenPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	page, err := h.Registry.Open(c.Request.Context(), req)
	if err != nil {
		writePageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, page.Snapshot())
}

// GetPage returns the current snapshot of a page.
func (h *PageHandler) GetPage(c *gin.Context) {
	snap, err := h.Registry.Snapshot(c.Request.Context(), c.Param("pageID"))
	if err != nil {
		writePageError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StreamPage pushes snapshots as server-sent events until the page closes or the client
// goes away.
func (h *PageHandler) StreamPage(c *gin.Context) {
	page, err := h.Registry.Get(c.Param("pageID"))
	if err != nil {
		writePageError(c, err)
		return
	}
	sub, err := page.Subscribe()
	if err != nil {
		writePageError(c, err)
		return
	}
	defer sub.Release()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return !snap.Closed
		case <-ctx.Done():
			return false
		}
	})
}

// UpdateForm syncs the typed form state and returns the recomputed snapshot.
func (h *PageHandler) UpdateForm(c *gin.Context) {
	page, err := h.Registry.Get(c.Param("pageID"))
	if err != nil {
		writePageError(c, err)
		return
	}
	var form models.BookingForm
	if err := c.ShouldBindJSON(&form); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snap, err := page.UpdateForm(form)
	if err != nil {
		writePageError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SubmitBooking reserves the light. The body may carry the form; without one the last
// synced form is used.
func (h *PageHandler) SubmitBooking(c *gin.Context) {
	page, err := h.Registry.Get(c.Param("pageID"))
	if err != nil {
		writePageError(c, err)
		return
	}

	var form *models.BookingForm
	var body models.BookingForm
	switch err := c.ShouldBindJSON(&body); {
	case err == nil:
		form = &body
	case errors.Is(err, io.EOF):
	default:
		utils.JSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := page.Submit(c.Request.Context(), form); err != nil {
		writePageError(c, err)
		return
	}
	c.JSON(http.StatusOK, page.Snapshot())
}

// ConfirmPayment confirms payment for the held reservation.
func (h *PageHandler) ConfirmPayment(c *gin.Context) {
	page, err := h.Registry.Get(c.Param("pageID"))
	if err != nil {
		writePageError(c, err)
		return
	}
	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.JSONError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := page.ConfirmPayment(c.Request.Context(), req.PaymentMode, req.PaymentReference); err != nil {
		writePageError(c, err)
		return
	}
	c.JSON(http.StatusOK, page.Snapshot())
}

// ClosePage tears the page down, releasing any held reservation timers.
func (h *PageHandler) ClosePage(c *gin.Context) {
	if err := h.Registry.Close(c.Param("pageID")); err != nil {
		writePageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writePageError maps page and session errors onto HTTP statuses.
func writePageError(c *gin.Context, err error) {
	var (
		fieldErr   *reservation.FieldError
		reserveErr *reservation.ReserveRejectedError
		confirmErr *reservation.ConfirmRejectedError
	)
	switch {
	case errors.Is(err, pages.ErrPageNotFound):
		utils.JSONError(c, http.StatusNotFound, "page_not_found", err.Error())
	case errors.Is(err, pages.ErrInvalidSelection):
		utils.JSONError(c, http.StatusBadRequest, "invalid_selection", err.Error())
	case errors.Is(err, pages.ErrPageClosed), errors.Is(err, reservation.ErrSessionClosed):
		utils.JSONError(c, http.StatusGone, "page_closed", err.Error())
	case errors.As(err, &fieldErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"field":   fieldErr.Field,
			"message": fieldErr.Message,
		})
	case errors.Is(err, reservation.ErrMissingPaymentMode), errors.Is(err, reservation.ErrInvalidPaymentMode):
		utils.JSONError(c, http.StatusUnprocessableEntity, "invalid_payment_mode", err.Error())
	case errors.As(err, &reserveErr):
		utils.JSONError(c, http.StatusConflict, "reservation_rejected", reserveErr.Message)
	case errors.As(err, &confirmErr):
		utils.JSONError(c, http.StatusConflict, "confirmation_rejected", confirmErr.Message)
	case errors.Is(err, pages.ErrFormLocked),
		errors.Is(err, reservation.ErrSubmissionInFlight),
		errors.Is(err, reservation.ErrAlreadyReserved),
		errors.Is(err, reservation.ErrNotReserved),
		errors.Is(err, reservation.ErrConfirmInFlight),
		errors.Is(err, reservation.ErrStaleResult):
		utils.JSONError(c, http.StatusConflict, "invalid_state", err.Error())
	default:
		getLogger(c).Error("booking backend call failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, "booking_backend_unavailable", "The booking service could not be reached. Please try again.")
	}
}
