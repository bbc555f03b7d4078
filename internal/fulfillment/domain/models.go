package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	"gorm.io/datatypes"
)

// BookingKind discriminates rows of the bookings table.
type BookingKind string

const (
	BookingKindAppointment        BookingKind = "appointment"
	BookingKindIncorporationOrder BookingKind = "incorporation_order"
)

// BookingKindFor maps an offering kind onto the booking it produces.
func BookingKindFor(kind catalogdomain.Kind) (BookingKind, error) {
	switch kind {
	case catalogdomain.KindConsultation:
		return BookingKindAppointment, nil
	case catalogdomain.KindIncorporationService:
		return BookingKindIncorporationOrder, nil
	default:
		return "", catalogdomain.ErrInvalidKind
	}
}

type Subject string

const (
	SubjectFree Subject = "FREE"
	SubjectPaid Subject = "PAID"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusComplete OrderStatus = "COMPLETE"
)

const PaymentStatusSuccess = "SUCCESS"

// Attributes are the purchase-specific inputs collected at checkout.
type Attributes struct {
	Date            *time.Time `json:"date,omitempty"`
	AppointmentType string     `json:"appointment_type,omitempty"`
	OutsideKSA      bool       `json:"outside_ksa,omitempty"`
	AnotherLocation bool       `json:"another_location,omitempty"`
}

// Normalize trims free text and pins the date to UTC.
func (a Attributes) Normalize() Attributes {
	a.AppointmentType = strings.TrimSpace(a.AppointmentType)
	if a.Date != nil {
		date := a.Date.UTC()
		a.Date = &date
	}
	return a
}

func (a Attributes) JSONMap() datatypes.JSONMap {
	m := datatypes.JSONMap{}
	if a.Date != nil {
		m["date"] = a.Date.UTC().Format(time.RFC3339)
	}
	if a.AppointmentType != "" {
		m["appointment_type"] = a.AppointmentType
	}
	if a.OutsideKSA {
		m["outside_ksa"] = true
	}
	if a.AnotherLocation {
		m["another_location"] = true
	}
	return m
}

// PaymentInfo is the verified outcome of an external payment session.
type PaymentInfo struct {
	Provider    string
	ExternalRef string
	SessionID   string
	Amount      decimal.Decimal
	Currency    string
	Method      string
}

type FulfillRequest struct {
	ClientID   snowflake.ID
	Offering   catalogdomain.Offering
	Attributes Attributes
	Payment    *PaymentInfo
}

func (r FulfillRequest) Subject() Subject {
	if r.Payment != nil {
		return SubjectPaid
	}
	return SubjectFree
}

type Order struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClientID   snowflake.ID    `gorm:"column:client_id" json:"client_id"`
	TotalPrice decimal.Decimal `gorm:"column:total_price" json:"total_price"`
	Currency   string          `gorm:"column:currency" json:"currency"`
	Status     OrderStatus     `gorm:"column:status" json:"status"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

type OrderItem struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrderID      snowflake.ID       `gorm:"column:order_id" json:"order_id"`
	OfferingKind catalogdomain.Kind `gorm:"column:offering_kind" json:"offering_kind"`
	OfferingID   snowflake.ID       `gorm:"column:offering_id" json:"offering_id"`
	PriceAtTime  decimal.Decimal    `gorm:"column:price_at_time" json:"price_at_time"`
	Quantity     int                `gorm:"column:quantity" json:"quantity"`
	CreatedAt    time.Time          `gorm:"column:created_at" json:"created_at"`
}

type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrderID     snowflake.ID    `gorm:"column:order_id" json:"order_id"`
	ClientID    snowflake.ID    `gorm:"column:client_id" json:"client_id"`
	Provider    string          `gorm:"column:provider" json:"provider"`
	ExternalRef string          `gorm:"column:external_ref" json:"external_ref"`
	SessionID   string          `gorm:"column:session_id" json:"-"`
	Amount      decimal.Decimal `gorm:"column:amount" json:"amount"`
	Currency    string          `gorm:"column:currency" json:"currency"`
	Method      string          `gorm:"column:method" json:"method"`
	Status      string          `gorm:"column:status" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
}

// Booking is an appointment or an incorporation order. ChatID is read from
// the chat opened for it.
type Booking struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	Kind            BookingKind       `gorm:"column:kind" json:"kind"`
	OfferingID      snowflake.ID      `gorm:"column:offering_id" json:"offering_id"`
	ClientID        snowflake.ID      `gorm:"column:client_id" json:"client_id"`
	ProviderID      snowflake.ID      `gorm:"column:provider_id" json:"provider_id"`
	OrderID         *snowflake.ID     `gorm:"column:order_id" json:"order_id,omitempty"`
	Subject         Subject           `gorm:"column:subject" json:"subject"`
	ScheduledAt     *time.Time        `gorm:"column:scheduled_at" json:"scheduled_at,omitempty"`
	AppointmentType *string           `gorm:"column:appointment_type" json:"appointment_type,omitempty"`
	Attributes      datatypes.JSONMap `gorm:"column:attributes" json:"attributes,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at" json:"created_at"`
	ChatID          snowflake.ID      `gorm:"column:chat_id;->" json:"chat_id"`
}

type Chat struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID   snowflake.ID `gorm:"column:client_id" json:"client_id"`
	EmployeeID snowflake.ID `gorm:"column:employee_id" json:"employee_id"`
	BookingID  snowflake.ID `gorm:"column:booking_id" json:"booking_id"`
	Title      string       `gorm:"column:title" json:"title"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
}

type Notification struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID  snowflake.ID `gorm:"column:client_id" json:"client_id"`
	BookingID snowflake.ID `gorm:"column:booking_id" json:"booking_id"`
	Content   string       `gorm:"column:content" json:"content"`
	IsRead    bool         `gorm:"column:is_read" json:"is_read"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
}

// NotificationContent is the message stored for the client when a booking is
// created.
func NotificationContent(booking Booking) string {
	if booking.Kind == BookingKindIncorporationOrder {
		return fmt.Sprintf("Your incorporation order with id: %s has been placed successfully!", booking.ID)
	}
	date := ""
	if booking.ScheduledAt != nil {
		date = booking.ScheduledAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("Your appointment with id: %s and date: %s has been booked successfully!", booking.ID, date)
}
