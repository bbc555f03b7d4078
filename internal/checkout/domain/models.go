package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	fulfillmentdomain "github.com/smallbiznis/semah/internal/fulfillment/domain"
)

// State is a purchase's position in the checkout lifecycle. Abandoned
// sessions are never observed by the service; they simply expire at the
// processor.
type State string

const (
	StateInitiated       State = "INITIATED"
	StateFreeFulfilled   State = "FREE_FULFILLED"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StatePaidFulfilled   State = "PAID_FULFILLED"
	StateAbandoned       State = "ABANDONED"
)

type InitiateRequest struct {
	ClientID   snowflake.ID
	Kind       catalogdomain.Kind
	OfferingID snowflake.ID
	Attributes fulfillmentdomain.Attributes
}

type InitiateResult struct {
	State       State                      `json:"state"`
	RedirectURL string                     `json:"redirect_url,omitempty"`
	Booking     *fulfillmentdomain.Booking `json:"booking,omitempty"`
	IntentRef   string                     `json:"intent_ref"`
}

type CompleteResult struct {
	State    State                     `json:"state"`
	Booking  fulfillmentdomain.Booking `json:"booking"`
	Replayed bool                      `json:"replayed"`
	ViewURL  string                    `json:"view_url,omitempty"`
}

// EventStatus is how a processor notification was settled. Only events that
// may succeed on redelivery surface as errors.
type EventStatus string

const (
	EventCompleted EventStatus = "ok"
	EventIgnored   EventStatus = "ignored"
	EventRejected  EventStatus = "rejected"
)

type EventResult struct {
	Status EventStatus    `json:"status"`
	Result CompleteResult `json:"-"`
	Reason string         `json:"reason,omitempty"`
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	CompleteSession(ctx context.Context, sessionID string) (CompleteResult, error)
	// HandleProcessorEvent completes the session named by a verified
	// processor notification. Sessions that can never be fulfilled are
	// reported as rejected rather than failed.
	HandleProcessorEvent(ctx context.Context, payload []byte, headers http.Header) (EventResult, error)
	ViewURL(booking fulfillmentdomain.Booking) string
}

var (
	ErrInvalidRequest      = errors.New("invalid_checkout_request")
	ErrInvalidSession      = errors.New("invalid_session")
	ErrSessionNotPaid      = errors.New("session_not_paid")
	ErrSessionOwnership    = errors.New("session_belongs_to_another_client")
	ErrRateLimited         = errors.New("checkout_rate_limited")
	ErrWebhookNotSupported = errors.New("webhook_not_supported")
)
