package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/semah/internal/assignment"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/semah/internal/client/domain"
	"github.com/smallbiznis/semah/internal/clock"
	"github.com/smallbiznis/semah/internal/fulfillment/domain"
	obslogger "github.com/smallbiznis/semah/internal/observability/logger"
	"github.com/smallbiznis/semah/internal/observability/metrics"
	"github.com/smallbiznis/semah/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	DBConfig    db.Config
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ClientRepo  clientdomain.Repository
	CatalogRepo catalogdomain.Repository
	Policy      assignment.Policy
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	dbConfig    db.Config
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	clientRepo  clientdomain.Repository
	catalogRepo catalogdomain.Repository
	policy      assignment.Policy
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	policy := p.Policy
	if policy == nil {
		policy = assignment.NewFirstEligible()
	}
	return &Service{
		db:          p.DB,
		dbConfig:    p.DBConfig,
		log:         p.Log.Named("fulfillment.service"),
		genID:       p.GenID,
		clock:       c,
		repo:        p.Repo,
		clientRepo:  p.ClientRepo,
		catalogRepo: p.CatalogRepo,
		policy:      policy,
		metrics:     p.Metrics,
	}
}

func (s *Service) Fulfill(ctx context.Context, req domain.FulfillRequest) (domain.Booking, error) {
	if req.ClientID == 0 {
		return domain.Booking{}, domain.ErrInvalidClient
	}
	kind, err := domain.BookingKindFor(req.Offering.Kind)
	if err != nil {
		return domain.Booking{}, err
	}
	if req.Offering.ID == 0 {
		return domain.Booking{}, catalogdomain.ErrInvalidID
	}
	if req.Payment != nil {
		if err := validatePayment(*req.Payment); err != nil {
			return domain.Booking{}, err
		}
	}
	attrs := req.Attributes.Normalize()

	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("client_id", req.ClientID.String()),
		zap.String("offering_kind", req.Offering.Kind.String()),
		zap.String("offering_id", req.Offering.ID.String()),
		zap.String("subject", string(req.Subject())),
	)

	var booking domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.clientRepo.Exists(ctx, tx, req.ClientID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrInvalidClient
		}

		// Providers may have been unlinked since the session was created.
		eligible, err := s.catalogRepo.ListEligibleProviders(ctx, tx, req.Offering.Kind, req.Offering.ID)
		if err != nil {
			return err
		}
		providerID, err := s.policy.Assign(eligible)
		if err != nil {
			return domain.ErrUnfulfillable
		}

		now := s.clock.Now().UTC()

		var orderID *snowflake.ID
		if req.Payment != nil {
			id, err := s.insertPaidOrder(ctx, tx, req, now)
			if err != nil {
				return err
			}
			orderID = &id
		}

		booking = domain.Booking{
			ID:          s.genID.Generate(),
			Kind:        kind,
			OfferingID:  req.Offering.ID,
			ClientID:    req.ClientID,
			ProviderID:  providerID,
			OrderID:     orderID,
			Subject:     req.Subject(),
			ScheduledAt: attrs.Date,
			Attributes:  attrs.JSONMap(),
			CreatedAt:   now,
		}
		if attrs.AppointmentType != "" {
			appointmentType := attrs.AppointmentType
			booking.AppointmentType = &appointmentType
		}
		if err := s.repo.InsertBooking(ctx, tx, &booking); err != nil {
			return err
		}

		chat := domain.Chat{
			ID:         s.genID.Generate(),
			ClientID:   req.ClientID,
			EmployeeID: providerID,
			BookingID:  booking.ID,
			Title:      chatTitle(req.Offering, booking.ID),
			CreatedAt:  now,
		}
		if err := s.repo.InsertChat(ctx, tx, &chat); err != nil {
			return err
		}
		booking.ChatID = chat.ID

		notification := domain.Notification{
			ID:        s.genID.Generate(),
			ClientID:  req.ClientID,
			BookingID: booking.ID,
			Content:   domain.NotificationContent(booking),
			CreatedAt: now,
		}
		return s.repo.InsertNotification(ctx, tx, &notification)
	}, s.dbConfig.SerializableTx())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidClient), errors.Is(err, domain.ErrUnfulfillable):
			log.Warn("fulfillment rejected", zap.Error(err))
			return domain.Booking{}, err
		case errors.Is(err, domain.ErrDuplicatePayment):
			log.Info("payment already recorded")
			return domain.Booking{}, err
		}
		reason := metrics.ClassifyReason(err)
		s.metrics.RecordFulfillmentFailed(ctx, reason)
		log.Error("fulfillment failed", zap.String("reason", reason), zap.Error(err))
		return domain.Booking{}, fmt.Errorf("%w: %v", domain.ErrFulfillmentFailed, err)
	}

	log.Info("fulfillment committed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("provider_id", booking.ProviderID.String()),
	)
	return booking, nil
}

func (s *Service) insertPaidOrder(ctx context.Context, tx *gorm.DB, req domain.FulfillRequest, now time.Time) (snowflake.ID, error) {
	payment := req.Payment
	order := domain.Order{
		ID:         s.genID.Generate(),
		ClientID:   req.ClientID,
		TotalPrice: req.Offering.Price,
		Currency:   payment.Currency,
		Status:     domain.OrderStatusComplete,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertOrder(ctx, tx, &order); err != nil {
		return 0, err
	}

	item := domain.OrderItem{
		ID:           s.genID.Generate(),
		OrderID:      order.ID,
		OfferingKind: req.Offering.Kind,
		OfferingID:   req.Offering.ID,
		PriceAtTime:  req.Offering.Price,
		Quantity:     1,
		CreatedAt:    now,
	}
	if err := s.repo.InsertOrderItem(ctx, tx, &item); err != nil {
		return 0, err
	}

	record := domain.Payment{
		ID:          s.genID.Generate(),
		OrderID:     order.ID,
		ClientID:    req.ClientID,
		Provider:    payment.Provider,
		ExternalRef: payment.ExternalRef,
		SessionID:   payment.SessionID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Method:      payment.Method,
		Status:      domain.PaymentStatusSuccess,
		CreatedAt:   now,
	}
	if err := s.repo.InsertPayment(ctx, tx, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return 0, domain.ErrDuplicatePayment
		}
		return 0, err
	}
	return order.ID, nil
}

func (s *Service) FindByPaymentRef(ctx context.Context, externalRef string) (domain.Booking, bool, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return domain.Booking{}, false, domain.ErrInvalidPayment
	}
	booking, err := s.repo.FindBookingByPaymentRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.Booking{}, false, err
	}
	if booking == nil {
		return domain.Booking{}, false, nil
	}
	return *booking, true, nil
}

func (s *Service) FindBySessionID(ctx context.Context, sessionID string) (domain.Booking, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Booking{}, false, domain.ErrInvalidPayment
	}
	booking, err := s.repo.FindBookingBySessionID(ctx, s.db, sessionID)
	if err != nil {
		return domain.Booking{}, false, err
	}
	if booking == nil {
		return domain.Booking{}, false, nil
	}
	return *booking, true, nil
}

func (s *Service) GetBooking(ctx context.Context, id snowflake.ID) (domain.Booking, error) {
	if id == 0 {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	booking, err := s.repo.FindBookingByID(ctx, s.db, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking == nil {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return *booking, nil
}

func validatePayment(p domain.PaymentInfo) error {
	if strings.TrimSpace(p.ExternalRef) == "" || strings.TrimSpace(p.SessionID) == "" {
		return domain.ErrInvalidPayment
	}
	if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Currency) == "" {
		return domain.ErrInvalidPayment
	}
	if !p.Amount.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidPayment
	}
	return nil
}

func chatTitle(offering catalogdomain.Offering, bookingID snowflake.ID) string {
	return slug.Make(offering.Name + " " + bookingID.String())
}
