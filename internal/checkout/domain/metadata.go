package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/semah/internal/catalog/domain"
	fulfillmentdomain "github.com/smallbiznis/semah/internal/fulfillment/domain"
)

const (
	metaClientID        = "client_id"
	metaOfferingKind    = "offering_kind"
	metaOfferingID      = "offering_id"
	metaPrice           = "price"
	metaCurrency        = "currency"
	metaIntentRef       = "intent_ref"
	metaDate            = "date"
	metaAppointmentType = "appointment_type"
	metaOutsideKSA      = "outside_ksa"
	metaAnotherLocation = "another_location"
)

// Intent is a paid purchase awaiting the processor. It is never stored
// locally; the session metadata is its only durable copy.
type Intent struct {
	ClientID   snowflake.ID
	Kind       catalogdomain.Kind
	OfferingID snowflake.ID
	Price      decimal.Decimal
	Currency   string
	Attributes fulfillmentdomain.Attributes
	Ref        string
}

func NewIntentRef() string {
	return ulid.Make().String()
}

// MinorAmount is the price in the currency's smallest unit.
func (i Intent) MinorAmount() int64 {
	return MinorUnits(i.Price)
}

func MinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

func (i Intent) Metadata() map[string]string {
	m := map[string]string{
		metaClientID:     i.ClientID.String(),
		metaOfferingKind: i.Kind.String(),
		metaOfferingID:   i.OfferingID.String(),
		metaPrice:        i.Price.StringFixed(2),
		metaCurrency:     strings.ToLower(i.Currency),
		metaIntentRef:    i.Ref,
	}
	if i.Attributes.Date != nil {
		m[metaDate] = i.Attributes.Date.UTC().Format(time.RFC3339)
	}
	if i.Attributes.AppointmentType != "" {
		m[metaAppointmentType] = i.Attributes.AppointmentType
	}
	if i.Attributes.OutsideKSA {
		m[metaOutsideKSA] = "true"
	}
	if i.Attributes.AnotherLocation {
		m[metaAnotherLocation] = "true"
	}
	return m
}

// IntentFromMetadata rebuilds an intent from session metadata. Any missing
// or malformed field makes the session invalid.
func IntentFromMetadata(m map[string]string) (Intent, error) {
	if len(m) == 0 {
		return Intent{}, ErrInvalidSession
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(m[metaClientID]))
	if err != nil || clientID == 0 {
		return Intent{}, ErrInvalidSession
	}
	kind, err := catalogdomain.ParseKind(m[metaOfferingKind])
	if err != nil {
		return Intent{}, ErrInvalidSession
	}
	offeringID, err := snowflake.ParseString(strings.TrimSpace(m[metaOfferingID]))
	if err != nil || offeringID == 0 {
		return Intent{}, ErrInvalidSession
	}
	price, err := decimal.NewFromString(strings.TrimSpace(m[metaPrice]))
	if err != nil || !price.IsPositive() {
		return Intent{}, ErrInvalidSession
	}
	currency := strings.ToLower(strings.TrimSpace(m[metaCurrency]))
	if currency == "" {
		return Intent{}, ErrInvalidSession
	}

	attrs := fulfillmentdomain.Attributes{
		AppointmentType: m[metaAppointmentType],
	}
	if raw := strings.TrimSpace(m[metaDate]); raw != "" {
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Intent{}, ErrInvalidSession
		}
		attrs.Date = &date
	}
	if attrs.OutsideKSA, err = parseFlag(m[metaOutsideKSA]); err != nil {
		return Intent{}, ErrInvalidSession
	}
	if attrs.AnotherLocation, err = parseFlag(m[metaAnotherLocation]); err != nil {
		return Intent{}, ErrInvalidSession
	}

	return Intent{
		ClientID:   clientID,
		Kind:       kind,
		OfferingID: offeringID,
		Price:      price,
		Currency:   currency,
		Attributes: attrs.Normalize(),
		Ref:        strings.TrimSpace(m[metaIntentRef]),
	}, nil
}

func parseFlag(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
