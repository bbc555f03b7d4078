package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/semah/internal/payment/domain"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const providerName = "stripe"

const eventCheckoutSessionCompleted = "checkout.session.completed"

const defaultTimeout = 10 * time.Second

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Factory struct {
	backends *stripe.Backends
	sessions sessionAPI
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewGateway(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" && f.sessions == nil {
		return nil, paymentdomain.ErrInvalidConfig
	}

	sessions := f.sessions
	if sessions == nil {
		sessions = client.New(key, f.backends).CheckoutSessions
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Adapter{
		sessions:      sessions,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		timeout:       timeout,
	}, nil
}

// Adapter drives Stripe hosted checkout sessions.
type Adapter struct {
	sessions      sessionAPI
	webhookSecret string
	timeout       time.Duration
}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.SessionRequest) (paymentdomain.Session, error) {
	if req.Amount <= 0 || strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return paymentdomain.Session{}, paymentdomain.ErrInvalidRequest
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
			},
		},
	}
	params.Context = ctx
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	session, err := a.sessions.New(params)
	if err != nil {
		return paymentdomain.Session{}, mapError(ctx, "create checkout session", err)
	}
	if session == nil || session.ID == "" {
		return paymentdomain.Session{}, fmt.Errorf("stripe: create checkout session: %w", paymentdomain.ErrGatewayFailure)
	}

	return paymentdomain.Session{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) ResolveSession(ctx context.Context, sessionID string) (paymentdomain.SessionOutcome, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return paymentdomain.SessionOutcome{}, paymentdomain.ErrInvalidSession
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	session, err := a.sessions.Get(sessionID, params)
	if err != nil {
		return paymentdomain.SessionOutcome{}, mapError(ctx, "retrieve checkout session", err)
	}
	if session == nil {
		return paymentdomain.SessionOutcome{}, paymentdomain.ErrSessionNotFound
	}

	return outcomeFromSession(session), nil
}

// ParseCompletion verifies the Stripe-Signature header and extracts the
// session id of a checkout.session.completed event.
func (a *Adapter) ParseCompletion(ctx context.Context, payload []byte, headers http.Header) (paymentdomain.CompletionEvent, error) {
	if a.webhookSecret == "" {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidConfig
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, a.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidSignature
		}
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidPayload
	}

	if string(event.Type) != eventCheckoutSessionCompleted {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrEventIgnored
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidPayload
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return paymentdomain.CompletionEvent{}, paymentdomain.ErrInvalidPayload
	}

	return paymentdomain.CompletionEvent{EventID: event.ID, SessionID: session.ID}, nil
}

func outcomeFromSession(session *stripe.CheckoutSession) paymentdomain.SessionOutcome {
	outcome := paymentdomain.SessionOutcome{
		SessionID: session.ID,
		Amount:    session.AmountTotal,
		Currency:  strings.ToLower(string(session.Currency)),
		Paid:      session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if len(session.Metadata) > 0 {
		outcome.Metadata = make(map[string]string, len(session.Metadata))
		for k, v := range session.Metadata {
			outcome.Metadata[k] = v
		}
	}
	if len(session.PaymentMethodTypes) > 0 {
		outcome.PaymentMethod = session.PaymentMethodTypes[0]
	}
	if session.PaymentIntent != nil {
		outcome.ExternalPaymentRef = session.PaymentIntent.ID
	}
	return outcome
}

func mapError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("stripe: %s: %w", op, paymentdomain.ErrGatewayTimeout)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return paymentdomain.ErrSessionNotFound
		}
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return paymentdomain.ErrInvalidSession
		}
	}
	return fmt.Errorf("stripe: %s: %w: %v", op, paymentdomain.ErrGatewayFailure, err)
}
