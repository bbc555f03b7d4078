// Package testutil opens in-memory SQLite databases carrying the same schema
// as the embedded postgres migrations.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE clients (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_clients_email ON clients(email)`,
	`CREATE TABLE employees (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE consultations (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE consultation_employees (
		consultation_id BIGINT NOT NULL,
		employee_id BIGINT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (consultation_id, employee_id)
	)`,
	`CREATE TABLE incorporation_services (
		id BIGINT PRIMARY KEY,
		activity_type TEXT NOT NULL,
		outside_ksa BOOLEAN NOT NULL DEFAULT FALSE,
		another_location BOOLEAN NOT NULL DEFAULT FALSE,
		contract BOOLEAN NOT NULL DEFAULT FALSE,
		price NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE incorporation_service_employees (
		incorporation_service_id BIGINT NOT NULL,
		employee_id BIGINT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (incorporation_service_id, employee_id)
	)`,
	`CREATE TABLE orders (
		id BIGINT PRIMARY KEY,
		client_id BIGINT NOT NULL,
		total_price NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE order_items (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		offering_kind TEXT NOT NULL,
		offering_id BIGINT NOT NULL,
		price_at_time NUMERIC NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		provider TEXT NOT NULL,
		external_ref TEXT NOT NULL,
		session_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payments_external_ref ON payments(external_ref)`,
	`CREATE UNIQUE INDEX ux_payments_session_id ON payments(session_id)`,
	`CREATE UNIQUE INDEX ux_payments_order_id ON payments(order_id)`,
	`CREATE TABLE bookings (
		id BIGINT PRIMARY KEY,
		kind TEXT NOT NULL,
		offering_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		provider_id BIGINT NOT NULL,
		order_id BIGINT,
		subject TEXT NOT NULL,
		scheduled_at DATETIME,
		appointment_type TEXT,
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_bookings_order_id ON bookings(order_id)`,
	`CREATE TABLE chats (
		id BIGINT PRIMARY KEY,
		client_id BIGINT NOT NULL,
		employee_id BIGINT NOT NULL,
		booking_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_chats_booking_id ON chats(booking_id)`,
	`CREATE TABLE notifications (
		id BIGINT PRIMARY KEY,
		client_id BIGINT NOT NULL,
		booking_id BIGINT NOT NULL,
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB returns a fresh in-memory database. A single connection keeps
// concurrent tests serialized on SQLite's writer lock instead of failing
// with "database table is locked".
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func SeedClient(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	mustExec(t, db, `INSERT INTO clients (id, name, email) VALUES (?, ?, ?)`,
		id, "client "+id.String(), id.String()+"@example.com")
}

func SeedEmployee(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	mustExec(t, db, `INSERT INTO employees (id, name) VALUES (?, ?)`, id, "employee "+id.String())
}

// SeedConsultation inserts a consultation whose eligible providers follow
// the order of employees.
func SeedConsultation(t *testing.T, db *gorm.DB, id snowflake.ID, name string, price decimal.Decimal, employees ...snowflake.ID) {
	t.Helper()
	mustExec(t, db, `INSERT INTO consultations (id, name, price) VALUES (?, ?, ?)`, id, name, price)
	for i, employeeID := range employees {
		mustExec(t, db, `INSERT INTO consultation_employees (consultation_id, employee_id, position) VALUES (?, ?, ?)`,
			id, employeeID, i)
	}
}

func SeedIncorporationService(t *testing.T, db *gorm.DB, id snowflake.ID, activity string, price decimal.Decimal, employees ...snowflake.ID) {
	t.Helper()
	mustExec(t, db, `INSERT INTO incorporation_services (id, activity_type, price) VALUES (?, ?, ?)`, id, activity, price)
	for i, employeeID := range employees {
		mustExec(t, db, `INSERT INTO incorporation_service_employees (incorporation_service_id, employee_id, position) VALUES (?, ?, ?)`,
			id, employeeID, i)
	}
}

func AssertCount(t *testing.T, db *gorm.DB, query string, expected int64, args ...interface{}) {
	t.Helper()
	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d rows for %q, got %d", expected, query, count)
	}
}

func mustExec(t *testing.T, db *gorm.DB, query string, args ...interface{}) {
	t.Helper()
	if err := db.Exec(query, args...).Error; err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
