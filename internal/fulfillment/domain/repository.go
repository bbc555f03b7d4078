package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	InsertOrderItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	InsertBooking(ctx context.Context, db *gorm.DB, booking *Booking) error
	InsertChat(ctx context.Context, db *gorm.DB, chat *Chat) error
	InsertNotification(ctx context.Context, db *gorm.DB, notification *Notification) error

	FindBookingByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	// FindBookingByPaymentRef follows payments.external_ref to the booking
	// created with it.
	FindBookingByPaymentRef(ctx context.Context, db *gorm.DB, externalRef string) (*Booking, error)
	FindBookingBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Booking, error)
}
