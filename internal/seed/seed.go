package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Demo rows use fixed ids so reseeding never duplicates them.
const (
	DemoClientID           snowflake.ID = 1_000_001
	DemoEmployeeAID        snowflake.ID = 1_000_101
	DemoEmployeeBID        snowflake.ID = 1_000_102
	DemoFreeConsultationID snowflake.ID = 1_000_201
	DemoPaidConsultationID snowflake.ID = 1_000_202
	DemoIncorporationID    snowflake.ID = 1_000_301
)

const (
	demoClientEmail          = "demo.client@semah.sa"
	demoIncorporationService = "Commercial registration"
)

type employee struct {
	id   snowflake.ID
	name string
}

type offering struct {
	id        snowflake.ID
	name      string
	price     decimal.Decimal
	employees []snowflake.ID
}

var (
	demoEmployees = []employee{
		{id: DemoEmployeeAID, name: "Demo Advisor A"},
		{id: DemoEmployeeBID, name: "Demo Advisor B"},
	}
	demoConsultations = []offering{
		{id: DemoFreeConsultationID, name: "Introductory Call", price: decimal.Zero, employees: []snowflake.ID{DemoEmployeeAID, DemoEmployeeBID}},
		{id: DemoPaidConsultationID, name: "Tax Advisory", price: decimal.NewFromInt(500), employees: []snowflake.ID{DemoEmployeeBID}},
	}
	demoIncorporation = offering{
		id:        DemoIncorporationID,
		name:      demoIncorporationService,
		price:     decimal.NewFromInt(1500),
		employees: []snowflake.ID{DemoEmployeeAID},
	}
)

// EnsureDemoData seeds a client, two providers and one offering of each
// pricing path for local development.
func EnsureDemoData(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(ctx, tx, "clients", DemoClientID,
			`INSERT INTO clients (id, name, email) VALUES (?, ?, ?)`,
			DemoClientID, "Demo Client", demoClientEmail,
		); err != nil {
			return err
		}

		for _, e := range demoEmployees {
			if err := ensureRow(ctx, tx, "employees", e.id,
				`INSERT INTO employees (id, name) VALUES (?, ?)`, e.id, e.name,
			); err != nil {
				return err
			}
		}

		for _, c := range demoConsultations {
			if err := ensureRow(ctx, tx, "consultations", c.id,
				`INSERT INTO consultations (id, name, price) VALUES (?, ?, ?)`, c.id, c.name, c.price,
			); err != nil {
				return err
			}
			if err := ensureProviders(ctx, tx, "consultation_employees", "consultation_id", c); err != nil {
				return err
			}
		}

		if err := ensureRow(ctx, tx, "incorporation_services", demoIncorporation.id,
			`INSERT INTO incorporation_services (id, activity_type, price) VALUES (?, ?, ?)`,
			demoIncorporation.id, demoIncorporation.name, demoIncorporation.price,
		); err != nil {
			return err
		}
		return ensureProviders(ctx, tx, "incorporation_service_employees", "incorporation_service_id", demoIncorporation)
	})
}

func ensureRow(ctx context.Context, tx *gorm.DB, table string, id snowflake.ID, insert string, args ...interface{}) error {
	var count int64
	if err := tx.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(insert, args...).Error
}

func ensureProviders(ctx context.Context, tx *gorm.DB, table, ownerColumn string, o offering) error {
	for position, employeeID := range o.employees {
		var count int64
		err := tx.WithContext(ctx).Table(table).
			Where(ownerColumn+" = ? AND employee_id = ?", o.id, employeeID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		err = tx.WithContext(ctx).Exec(
			`INSERT INTO `+table+` (`+ownerColumn+`, employee_id, position) VALUES (?, ?, ?)`,
			o.id, employeeID, position,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
