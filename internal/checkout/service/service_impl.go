package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	"github.com/smallbiznis/semah/internal/checkout/domain"
	"github.com/smallbiznis/semah/internal/clock"
	"github.com/smallbiznis/semah/internal/config"
	fulfillmentdomain "github.com/smallbiznis/semah/internal/fulfillment/domain"
	"github.com/smallbiznis/semah/internal/identity"
	obslogger "github.com/smallbiznis/semah/internal/observability/logger"
	"github.com/smallbiznis/semah/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/semah/internal/payment/domain"
	"github.com/smallbiznis/semah/internal/providers/queue"
	"github.com/smallbiznis/semah/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pathFree = "free"
	pathPaid = "paid"
)

type Params struct {
	fx.In

	Cfg             config.Config
	CheckoutConfig  *config.CheckoutConfigHolder
	Log             *zap.Logger
	Clock           clock.Clock
	Catalog         catalogdomain.Service
	Fulfillment     fulfillmentdomain.Service
	Gateway         paymentdomain.Gateway
	Limiter         *ratelimit.CheckoutLimiter `optional:"true"`
	Dispatcher      queue.Dispatcher           `optional:"true"`
	Metrics         *metrics.Metrics           `optional:"true"`
	CheckoutMetrics *metrics.CheckoutMetrics   `optional:"true"`
}

type Service struct {
	cfg             config.Config
	checkoutConfig  *config.CheckoutConfigHolder
	log             *zap.Logger
	clock           clock.Clock
	catalog         catalogdomain.Service
	fulfillment     fulfillmentdomain.Service
	gateway         paymentdomain.Gateway
	limiter         *ratelimit.CheckoutLimiter
	dispatcher      queue.Dispatcher
	metrics         *metrics.Metrics
	checkoutMetrics *metrics.CheckoutMetrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	holder := p.CheckoutConfig
	if holder == nil {
		holder = config.NewStaticCheckoutConfigHolder(config.DefaultCheckoutConfig())
	}
	dispatcher := p.Dispatcher
	if dispatcher == nil {
		dispatcher = queue.NoopDispatcher{}
	}
	return &Service{
		cfg:             p.Cfg,
		checkoutConfig:  holder,
		log:             p.Log.Named("checkout.service"),
		clock:           c,
		catalog:         p.Catalog,
		fulfillment:     p.Fulfillment,
		gateway:         p.Gateway,
		limiter:         p.Limiter,
		dispatcher:      dispatcher,
		metrics:         p.Metrics,
		checkoutMetrics: p.CheckoutMetrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (domain.InitiateResult, error) {
	if req.ClientID == 0 || req.OfferingID == 0 {
		return domain.InitiateResult{}, domain.ErrInvalidRequest
	}
	kind, err := catalogdomain.ParseKind(req.Kind.String())
	if err != nil {
		return domain.InitiateResult{}, err
	}

	intentRef := domain.NewIntentRef()
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("intent_ref", intentRef),
		zap.String("client_id", req.ClientID.String()),
		zap.String("offering_kind", kind.String()),
		zap.String("offering_id", req.OfferingID.String()),
	)

	if err := s.allowPurchase(ctx, log, req.ClientID.String()); err != nil {
		return domain.InitiateResult{}, err
	}

	offering, err := s.catalog.ResolveOffering(ctx, kind, req.OfferingID)
	if err != nil {
		return domain.InitiateResult{}, err
	}
	attrs := req.Attributes.Normalize()

	if offering.IsFree() {
		booking, err := s.fulfillment.Fulfill(ctx, fulfillmentdomain.FulfillRequest{
			ClientID:   req.ClientID,
			Offering:   offering,
			Attributes: attrs,
		})
		if err != nil {
			s.checkoutMetrics.IncFulfillmentError(err)
			return domain.InitiateResult{}, err
		}
		s.metrics.RecordCheckoutInitiated(ctx, kind.String(), pathFree)
		s.publish(ctx, log, booking, intentRef)
		log.Info("free purchase fulfilled", zap.String("booking_id", booking.ID.String()))
		return domain.InitiateResult{
			State:     domain.StateFreeFulfilled,
			Booking:   &booking,
			IntentRef: intentRef,
		}, nil
	}

	intent := domain.Intent{
		ClientID:   req.ClientID,
		Kind:       kind,
		OfferingID: offering.ID,
		Price:      offering.Price,
		Currency:   s.currency(),
		Attributes: attrs,
		Ref:        intentRef,
	}
	checkoutCfg := s.checkoutConfig.Get()

	start := s.clock.Now()
	session, err := s.gateway.CreateSession(ctx, paymentdomain.SessionRequest{
		Amount:      intent.MinorAmount(),
		Currency:    intent.Currency,
		ProductName: offering.Name,
		SuccessURL:  s.cfg.BackendURL + checkoutCfg.SuccessPath,
		CancelURL:   s.cfg.FrontendURL + checkoutCfg.CancelPath(kind.String()),
		Metadata:    intent.Metadata(),
	})
	s.checkoutMetrics.ObserveGatewayCall(s.gateway.Provider(), "create_session", s.clock.Now().Sub(start), err)
	if err != nil {
		log.Warn("payment session not created", zap.Error(err))
		return domain.InitiateResult{}, err
	}

	s.metrics.RecordCheckoutInitiated(ctx, kind.String(), pathPaid)
	obslogger.WithSession(log, session.ID).Info("awaiting payment")
	return domain.InitiateResult{
		State:       domain.StateAwaitingPayment,
		RedirectURL: session.URL,
		IntentRef:   intentRef,
	}, nil
}

func (s *Service) CompleteSession(ctx context.Context, sessionID string) (domain.CompleteResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.CompleteResult{}, domain.ErrInvalidSession
	}
	start := s.clock.Now()
	log := obslogger.WithSession(obslogger.WithContext(ctx, s.log), sessionID)

	token, acquired, err := s.limiter.TryLockSession(ctx, sessionID)
	switch {
	case err != nil:
		log.Warn("completion lock unavailable", zap.Error(err))
	case !acquired:
		s.checkoutMetrics.IncLockContention()
		log.Debug("session completion already in progress")
	case token != "":
		defer func() {
			if err := s.limiter.ReleaseSession(context.WithoutCancel(ctx), sessionID, token); err != nil {
				log.Warn("completion lock release failed", zap.Error(err))
			}
		}()
	}

	result, outcome, err := s.completeSession(ctx, log, sessionID)
	s.checkoutMetrics.ObserveCompletion(outcome, s.clock.Now().Sub(start))
	s.metrics.RecordCheckoutCompleted(ctx, s.gateway.Provider(), outcome)
	return result, err
}

func (s *Service) completeSession(ctx context.Context, log *zap.Logger, sessionID string) (domain.CompleteResult, string, error) {
	start := s.clock.Now()
	outcome, err := s.gateway.ResolveSession(ctx, sessionID)
	s.checkoutMetrics.ObserveGatewayCall(s.gateway.Provider(), "resolve_session", s.clock.Now().Sub(start), err)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrSessionNotFound) || errors.Is(err, paymentdomain.ErrInvalidSession) {
			return domain.CompleteResult{}, metrics.OutcomeRejected, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
		}
		log.Warn("payment session not resolved", zap.Error(err))
		return domain.CompleteResult{}, metrics.OutcomeFailed, err
	}
	if !outcome.Paid {
		return domain.CompleteResult{}, metrics.OutcomeRejected, fmt.Errorf("%w: %w", domain.ErrInvalidSession, domain.ErrSessionNotPaid)
	}
	if strings.TrimSpace(outcome.ExternalPaymentRef) == "" {
		return domain.CompleteResult{}, metrics.OutcomeRejected, domain.ErrInvalidSession
	}

	intent, err := domain.IntentFromMetadata(outcome.Metadata)
	if err != nil {
		log.Warn("session metadata rejected")
		return domain.CompleteResult{}, metrics.OutcomeRejected, err
	}
	log = log.With(
		zap.String("intent_ref", intent.Ref),
		zap.String("client_id", intent.ClientID.String()),
	)
	if principal, ok := identity.FromContext(ctx); ok && principal.IsClient() && principal.ID != intent.ClientID {
		log.Warn("session completed by another client", zap.String("caller_id", principal.ID.String()))
		return domain.CompleteResult{}, metrics.OutcomeRejected, domain.ErrSessionOwnership
	}
	if outcome.Amount != intent.MinorAmount() || !strings.EqualFold(outcome.Currency, intent.Currency) {
		log.Warn("session amount does not match intent",
			zap.Int64("paid_amount", outcome.Amount),
			zap.Int64("intent_amount", intent.MinorAmount()),
		)
		return domain.CompleteResult{}, metrics.OutcomeRejected, domain.ErrInvalidSession
	}

	if booking, found, err := s.fulfillment.FindByPaymentRef(ctx, outcome.ExternalPaymentRef); err != nil {
		return domain.CompleteResult{}, metrics.OutcomeFailed, err
	} else if found {
		log.Info("session already fulfilled", zap.String("booking_id", booking.ID.String()))
		return s.replayed(booking), metrics.OutcomeReplayed, nil
	}

	offering, err := s.catalog.ResolveOffering(ctx, intent.Kind, intent.OfferingID)
	if err != nil {
		log.Warn("offering no longer purchasable", zap.Error(err))
		return domain.CompleteResult{}, metrics.OutcomeRejected, err
	}
	// The client paid the snapshot price, not whatever the catalog says now.
	offering.Price = intent.Price

	booking, err := s.fulfillment.Fulfill(ctx, fulfillmentdomain.FulfillRequest{
		ClientID:   intent.ClientID,
		Offering:   offering,
		Attributes: intent.Attributes,
		Payment: &fulfillmentdomain.PaymentInfo{
			Provider:    s.gateway.Provider(),
			ExternalRef: outcome.ExternalPaymentRef,
			SessionID:   outcome.SessionID,
			Amount:      intent.Price,
			Currency:    intent.Currency,
			Method:      outcome.PaymentMethod,
		},
	})
	if err != nil {
		if errors.Is(err, fulfillmentdomain.ErrDuplicatePayment) || errors.Is(err, fulfillmentdomain.ErrFulfillmentFailed) {
			// A concurrent completion may have won the race.
			winner, found, findErr := s.fulfillment.FindByPaymentRef(ctx, outcome.ExternalPaymentRef)
			if findErr == nil && found {
				s.checkoutMetrics.IncDuplicatePayment()
				log.Info("concurrent completion resolved", zap.String("booking_id", winner.ID.String()))
				return s.replayed(winner), metrics.OutcomeReplayed, nil
			}
		}
		s.checkoutMetrics.IncFulfillmentError(err)
		if errors.Is(err, fulfillmentdomain.ErrInvalidClient) || errors.Is(err, fulfillmentdomain.ErrUnfulfillable) {
			return domain.CompleteResult{}, metrics.OutcomeRejected, err
		}
		return domain.CompleteResult{}, metrics.OutcomeFailed, err
	}

	s.publish(ctx, log, booking, intent.Ref)
	log.Info("paid purchase fulfilled", zap.String("booking_id", booking.ID.String()))
	return domain.CompleteResult{
		State:   domain.StatePaidFulfilled,
		Booking: booking,
		ViewURL: s.ViewURL(booking),
	}, metrics.OutcomeFulfilled, nil
}

func (s *Service) HandleProcessorEvent(ctx context.Context, payload []byte, headers http.Header) (domain.EventResult, error) {
	verifier, ok := s.gateway.(paymentdomain.WebhookVerifier)
	if !ok {
		return domain.EventResult{}, domain.ErrWebhookNotSupported
	}
	event, err := verifier.ParseCompletion(ctx, payload, headers)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		return domain.EventResult{Status: domain.EventIgnored}, nil
	}
	if err != nil {
		return domain.EventResult{}, err
	}
	log := s.log.With(zap.String("event_id", event.EventID))
	log.Debug("processor completion received")

	result, err := s.CompleteSession(ctx, event.SessionID)
	if err != nil {
		if reason, terminal := terminalReason(err); terminal {
			log.Warn("processor completion rejected", zap.String("reason", reason), zap.Error(err))
			return domain.EventResult{Status: domain.EventRejected, Reason: reason}, nil
		}
		return domain.EventResult{}, err
	}
	return domain.EventResult{Status: domain.EventCompleted, Result: result}, nil
}

// terminalReason reports completion failures that redelivering the same
// event cannot fix.
func terminalReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrSessionNotPaid):
		return domain.ErrSessionNotPaid.Error(), true
	case errors.Is(err, domain.ErrInvalidSession):
		return domain.ErrInvalidSession.Error(), true
	case errors.Is(err, domain.ErrSessionOwnership):
		return domain.ErrSessionOwnership.Error(), true
	case errors.Is(err, fulfillmentdomain.ErrInvalidClient):
		return fulfillmentdomain.ErrInvalidClient.Error(), true
	case errors.Is(err, fulfillmentdomain.ErrInvalidPayment):
		return fulfillmentdomain.ErrInvalidPayment.Error(), true
	case errors.Is(err, catalogdomain.ErrInvalidOffering):
		return catalogdomain.ErrInvalidOffering.Error(), true
	case errors.Is(err, catalogdomain.ErrNotFound):
		return catalogdomain.ErrNotFound.Error(), true
	default:
		return "", false
	}
}

// ViewURL is where the client sees a fulfilled booking. Incorporation
// orders are addressed by their order when one exists.
func (s *Service) ViewURL(booking fulfillmentdomain.Booking) string {
	if s.cfg.FrontendURL == "" {
		return ""
	}
	path := s.checkoutConfig.Get().ViewPath(string(booking.Kind))
	if path == "" {
		return ""
	}
	id := booking.ID
	if booking.Kind == fulfillmentdomain.BookingKindIncorporationOrder && booking.OrderID != nil {
		id = *booking.OrderID
	}
	return fmt.Sprintf("%s%s/%s", s.cfg.FrontendURL, path, id)
}

func (s *Service) replayed(booking fulfillmentdomain.Booking) domain.CompleteResult {
	return domain.CompleteResult{
		State:    domain.StatePaidFulfilled,
		Booking:  booking,
		Replayed: true,
		ViewURL:  s.ViewURL(booking),
	}
}

func (s *Service) allowPurchase(ctx context.Context, log *zap.Logger, clientID string) error {
	res, err := s.limiter.AllowPurchase(ctx, clientID)
	if err != nil {
		// Limits are best effort; an unavailable redis must not block sales.
		log.Warn("purchase limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, "checkout.purchase", "client")
		log.Info("purchase rate limited", zap.Duration("retry_after", res.RetryAfter))
		return domain.ErrRateLimited
	}
	return nil
}

// publish never fails the purchase: the records are already committed.
func (s *Service) publish(ctx context.Context, log *zap.Logger, booking fulfillmentdomain.Booking, intentRef string) {
	payload := queue.BookingFulfilledPayload{
		BookingID:  booking.ID.String(),
		ClientID:   booking.ClientID.String(),
		ProviderID: booking.ProviderID.String(),
		ChatID:     booking.ChatID.String(),
		Kind:       string(booking.Kind),
		Subject:    string(booking.Subject),
		Content:    fulfillmentdomain.NotificationContent(booking),
		ViewURL:    s.ViewURL(booking),
		IntentRef:  intentRef,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.dispatcher.DispatchBookingFulfilled(ctx, payload); err != nil {
		s.metrics.RecordNotificationQueued(ctx, "failed")
		log.Warn("booking event not queued", zap.String("booking_id", payload.BookingID), zap.Error(err))
		return
	}
	s.metrics.RecordNotificationQueued(ctx, "queued")
}

func (s *Service) currency() string {
	currency := strings.ToLower(strings.TrimSpace(s.cfg.Payment.Currency))
	if currency == "" {
		return "sar"
	}
	return currency
}
