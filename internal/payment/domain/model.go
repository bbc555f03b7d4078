package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// SessionRequest describes a hosted checkout session for a single line item.
// Amount is in minor units.
type SessionRequest struct {
	Amount      int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type Session struct {
	ID  string
	URL string
}

// SessionOutcome is what the processor reports for a session. Metadata is
// returned exactly as it was attached at creation.
type SessionOutcome struct {
	SessionID          string
	Metadata           map[string]string
	Amount             int64
	Currency           string
	PaymentMethod      string
	ExternalPaymentRef string
	Paid               bool
}

// Gateway is the narrow contract over an external payment processor.
type Gateway interface {
	Provider() string
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	ResolveSession(ctx context.Context, sessionID string) (SessionOutcome, error)
}

// CompletionEvent is a verified processor notification that a session
// finished.
type CompletionEvent struct {
	EventID   string
	SessionID string
}

// WebhookVerifier is implemented by gateways that push completion events.
type WebhookVerifier interface {
	ParseCompletion(ctx context.Context, payload []byte, headers http.Header) (CompletionEvent, error)
}

type AdapterConfig struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

type AdapterFactory interface {
	Provider() string
	NewGateway(cfg AdapterConfig) (Gateway, error)
}

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_payment_config")
	ErrInvalidRequest   = errors.New("invalid_session_request")
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrInvalidSession   = errors.New("invalid_session")
	ErrGatewayTimeout   = errors.New("payment_gateway_timeout")
	ErrGatewayFailure   = errors.New("payment_gateway_failure")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventIgnored     = errors.New("event_ignored")
)
