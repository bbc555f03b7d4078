package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
)

type Service interface {
	// Fulfill writes every record of a resolved purchase in one transaction.
	Fulfill(ctx context.Context, req FulfillRequest) (Booking, error)
	FindByPaymentRef(ctx context.Context, externalRef string) (Booking, bool, error)
	FindBySessionID(ctx context.Context, sessionID string) (Booking, bool, error)
	GetBooking(ctx context.Context, id snowflake.ID) (Booking, error)
}

var (
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidPayment    = errors.New("invalid_payment")
	ErrFulfillmentFailed = errors.New("fulfillment_failed")
	ErrDuplicatePayment  = errors.New("duplicate_payment")
	ErrBookingNotFound   = errors.New("booking_not_found")
)

// ErrUnfulfillable is the offering-level rejection shared with the catalog.
var ErrUnfulfillable = catalogdomain.ErrInvalidOffering
