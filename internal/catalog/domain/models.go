package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind identifies which catalog table an offering lives in.
type Kind string

const (
	KindConsultation         Kind = "consultation"
	KindIncorporationService Kind = "incorporation_service"
)

func ParseKind(raw string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case KindConsultation, KindIncorporationService:
		return kind, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) String() string {
	return string(k)
}

// Offering is a purchasable catalog entry with its eligible providers in
// declared order.
type Offering struct {
	Kind              Kind            `json:"kind"`
	ID                snowflake.ID    `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	EligibleProviders []snowflake.ID  `json:"eligible_providers"`

	// Incorporation service descriptors.
	ActivityType    string `json:"activity_type,omitempty"`
	OutsideKSA      bool   `json:"outside_ksa,omitempty"`
	AnotherLocation bool   `json:"another_location,omitempty"`
	Contract        bool   `json:"contract,omitempty"`
}

// IsFree reports a zero price. Negative prices never reach callers.
func (o Offering) IsFree() bool {
	return o.Price.IsZero()
}

// Fulfillable reports whether anyone can deliver the offering.
func (o Offering) Fulfillable() bool {
	return len(o.EligibleProviders) > 0
}

// ConsultationRow is the storage shape of a consultation.
type ConsultationRow struct {
	ID    snowflake.ID    `gorm:"column:id"`
	Name  string          `gorm:"column:name"`
	Price decimal.Decimal `gorm:"column:price"`
}

// IncorporationServiceRow is the storage shape of an incorporation service.
type IncorporationServiceRow struct {
	ID              snowflake.ID    `gorm:"column:id"`
	ActivityType    string          `gorm:"column:activity_type"`
	OutsideKSA      bool            `gorm:"column:outside_ksa"`
	AnotherLocation bool            `gorm:"column:another_location"`
	Contract        bool            `gorm:"column:contract"`
	Price           decimal.Decimal `gorm:"column:price"`
}

func (r ConsultationRow) Offering(providers []snowflake.ID) Offering {
	return Offering{
		Kind:              KindConsultation,
		ID:                r.ID,
		Name:              r.Name,
		Price:             r.Price,
		EligibleProviders: providers,
	}
}

func (r IncorporationServiceRow) Offering(providers []snowflake.ID) Offering {
	return Offering{
		Kind:              KindIncorporationService,
		ID:                r.ID,
		Name:              r.ActivityType,
		Price:             r.Price,
		EligibleProviders: providers,
		ActivityType:      r.ActivityType,
		OutsideKSA:        r.OutsideKSA,
		AnotherLocation:   r.AnotherLocation,
		Contract:          r.Contract,
	}
}
