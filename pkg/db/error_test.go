package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm sentinel", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres", err: errors.New(`ERROR: duplicate key value violates unique constraint "ux_payments_external_ref" (SQLSTATE 23505)`), want: true},
		{name: "mysql", err: errors.New("Error 1062 (23000): Duplicate entry 'pi_1' for key 'external_ref'"), want: true},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: payments.external_ref (2067)"), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKeyErr(tt.err))
		})
	}
}

func TestSerializableTxByDialect(t *testing.T) {
	assert.NotNil(t, Config{Type: "postgres"}.SerializableTx())
	assert.NotNil(t, Config{Type: "mysql"}.SerializableTx())
	assert.Nil(t, Config{Type: "sqlite"}.SerializableTx())
}
