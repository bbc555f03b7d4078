package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindConsultation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConsultationRow, error)
	FindIncorporationService(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IncorporationServiceRow, error)
	// ListEligibleProviders returns employee ids ordered by their declared
	// position.
	ListEligibleProviders(ctx context.Context, db *gorm.DB, kind Kind, id snowflake.ID) ([]snowflake.ID, error)
}
