package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/semah/internal/fulfillment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectBooking = `SELECT b.id, b.kind, b.offering_id, b.client_id, b.provider_id, b.order_id,
	 b.subject, b.scheduled_at, b.appointment_type, b.attributes, b.created_at,
	 COALESCE(c.id, 0) AS chat_id
	 FROM bookings b
	 LEFT JOIN chats c ON c.booking_id = b.id`

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, client_id, total_price, currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.ClientID,
		order.TotalPrice,
		order.Currency,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) InsertOrderItem(ctx context.Context, db *gorm.DB, item *domain.OrderItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_items (id, order_id, offering_kind, offering_id, price_at_time, quantity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrderID,
		item.OfferingKind,
		item.OfferingID,
		item.PriceAtTime,
		item.Quantity,
		item.CreatedAt,
	).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, order_id, client_id, provider, external_ref, session_id, amount, currency, method, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrderID,
		payment.ClientID,
		payment.Provider,
		payment.ExternalRef,
		payment.SessionID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Status,
		payment.CreatedAt,
	).Error
}

func (r *repo) InsertBooking(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bookings (id, kind, offering_id, client_id, provider_id, order_id, subject, scheduled_at, appointment_type, attributes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.Kind,
		booking.OfferingID,
		booking.ClientID,
		booking.ProviderID,
		booking.OrderID,
		booking.Subject,
		booking.ScheduledAt,
		booking.AppointmentType,
		booking.Attributes,
		booking.CreatedAt,
	).Error
}

func (r *repo) InsertChat(ctx context.Context, db *gorm.DB, chat *domain.Chat) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO chats (id, client_id, employee_id, booking_id, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID,
		chat.ClientID,
		chat.EmployeeID,
		chat.BookingID,
		chat.Title,
		chat.CreatedAt,
	).Error
}

func (r *repo) InsertNotification(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, client_id, booking_id, content, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.ClientID,
		notification.BookingID,
		notification.Content,
		notification.IsRead,
		notification.CreatedAt,
	).Error
}

func (r *repo) FindBookingByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	return r.findBooking(ctx, db, selectBooking+` WHERE b.id = ?`, id)
}

func (r *repo) FindBookingByPaymentRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.Booking, error) {
	return r.findBooking(ctx, db,
		selectBooking+` JOIN payments p ON p.order_id = b.order_id WHERE p.external_ref = ?`,
		externalRef,
	)
}

func (r *repo) FindBookingBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Booking, error) {
	return r.findBooking(ctx, db,
		selectBooking+` JOIN payments p ON p.order_id = b.order_id WHERE p.session_id = ?`,
		sessionID,
	)
}

func (r *repo) findBooking(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.Booking, error) {
	var booking domain.Booking
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&booking).Error; err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}
