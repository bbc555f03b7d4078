package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/semah/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindConsultation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ConsultationRow, error) {
	var row domain.ConsultationRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price
		 FROM consultations WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindIncorporationService(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.IncorporationServiceRow, error) {
	var row domain.IncorporationServiceRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, activity_type, outside_ksa, another_location, contract, price
		 FROM incorporation_services WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) ListEligibleProviders(ctx context.Context, db *gorm.DB, kind domain.Kind, id snowflake.ID) ([]snowflake.ID, error) {
	var query string
	switch kind {
	case domain.KindConsultation:
		query = `SELECT employee_id FROM consultation_employees
		 WHERE consultation_id = ?
		 ORDER BY position ASC, employee_id ASC`
	case domain.KindIncorporationService:
		query = `SELECT employee_id FROM incorporation_service_employees
		 WHERE incorporation_service_id = ?
		 ORDER BY position ASC, employee_id ASC`
	default:
		return nil, fmt.Errorf("list eligible providers: %w", domain.ErrInvalidKind)
	}

	var ids []snowflake.ID
	if err := db.WithContext(ctx).Raw(query, id).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
