package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/semah/internal/checkout/domain"
	fulfillmentdomain "github.com/smallbiznis/semah/internal/fulfillment/domain"
	"go.uber.org/zap"
)

type purchaseAttributes struct {
	Date            string `json:"date"`
	AppointmentType string `json:"appointment_type"`
	OutsideKSA      bool   `json:"outside_ksa"`
	AnotherLocation bool   `json:"another_location"`
}

type purchaseRequest struct {
	OfferingKind string             `json:"offering_kind" binding:"required"`
	OfferingID   string             `json:"offering_id" binding:"required"`
	Attributes   purchaseAttributes `json:"attributes"`
}

type completeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (s *Server) Purchase(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	kind, err := catalogdomain.ParseKind(req.OfferingKind)
	if err != nil {
		AbortWithError(c, newValidationError("offering_kind", "invalid_offering_kind", "invalid offering_kind"))
		return
	}
	offeringID, err := snowflake.ParseString(strings.TrimSpace(req.OfferingID))
	if err != nil || offeringID == 0 {
		AbortWithError(c, newValidationError("offering_id", "invalid_offering_id", "invalid offering_id"))
		return
	}
	date, err := parseOptionalTime(req.Attributes.Date)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	res, err := s.checkoutSvc.Initiate(c.Request.Context(), checkoutdomain.InitiateRequest{
		ClientID:   principal.ID,
		Kind:       kind,
		OfferingID: offeringID,
		Attributes: fulfillmentdomain.Attributes{
			Date:            date,
			AppointmentType: req.Attributes.AppointmentType,
			OutsideKSA:      req.Attributes.OutsideKSA,
			AnotherLocation: req.Attributes.AnotherLocation,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if res.State == checkoutdomain.StateFreeFulfilled {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": res})
}

func (s *Server) CompleteCheckout(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		AbortWithError(c, newValidationError("session_id", "required", "session_id is required"))
		return
	}
	c.Set("session_id", sessionID)

	res, err := s.checkoutSvc.CompleteSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// CheckoutSuccess is the processor's success redirect target. The client is
// sent on to the page showing the booking when the frontend is configured.
func (s *Server) CheckoutSuccess(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		AbortWithError(c, newValidationError("session_id", "required", "session_id is required"))
		return
	}
	c.Set("session_id", sessionID)

	res, err := s.checkoutSvc.CompleteSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if res.ViewURL != "" {
		c.Redirect(http.StatusSeeOther, res.ViewURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.checkoutSvc.HandleProcessorEvent(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		s.log.Warn("payment webhook failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	// Rejected events are acknowledged so the processor stops redelivering.
	switch res.Status {
	case checkoutdomain.EventCompleted:
		c.JSON(http.StatusOK, gin.H{"status": res.Status, "booking_id": res.Result.Booking.ID.String()})
	case checkoutdomain.EventRejected:
		c.JSON(http.StatusOK, gin.H{"status": res.Status, "reason": res.Reason})
	default:
		c.JSON(http.StatusOK, gin.H{"status": res.Status})
	}
}

// parseOptionalTime accepts RFC 3339 timestamps or bare dates.
func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidRequest
}
