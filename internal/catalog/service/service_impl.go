package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/semah/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

// ResolveOffering loads an offering with its eligible providers. An offering
// nobody can deliver is rejected here so no payment is ever taken for it.
func (s *Service) ResolveOffering(ctx context.Context, kind domain.Kind, id snowflake.ID) (domain.Offering, error) {
	kind, err := domain.ParseKind(kind.String())
	if err != nil {
		return domain.Offering{}, err
	}
	if id == 0 {
		return domain.Offering{}, domain.ErrInvalidID
	}

	var offering domain.Offering
	switch kind {
	case domain.KindConsultation:
		row, err := s.repo.FindConsultation(ctx, s.db, id)
		if err != nil {
			return domain.Offering{}, err
		}
		if row == nil {
			return domain.Offering{}, domain.ErrNotFound
		}
		offering = row.Offering(nil)
	case domain.KindIncorporationService:
		row, err := s.repo.FindIncorporationService(ctx, s.db, id)
		if err != nil {
			return domain.Offering{}, err
		}
		if row == nil {
			return domain.Offering{}, domain.ErrNotFound
		}
		offering = row.Offering(nil)
	}

	if offering.Price.IsNegative() {
		s.log.Warn("offering has a negative price",
			zap.String("kind", kind.String()),
			zap.String("offering_id", id.String()),
			zap.String("price", offering.Price.String()),
		)
		return domain.Offering{}, domain.ErrInvalidOffering
	}

	providers, err := s.repo.ListEligibleProviders(ctx, s.db, kind, id)
	if err != nil {
		return domain.Offering{}, err
	}
	offering.EligibleProviders = providers
	if !offering.Fulfillable() {
		s.log.Warn("offering has no eligible providers",
			zap.String("kind", kind.String()),
			zap.String("offering_id", id.String()),
		)
		return domain.Offering{}, domain.ErrInvalidOffering
	}

	return offering, nil
}
