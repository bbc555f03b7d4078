package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestPaymentsCarryUniqueReference(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000002_fulfillment.up.sql")
	require.NoError(t, err)

	sql := string(raw)
	assert.Contains(t, sql, "ux_payments_external_ref ON payments(external_ref)")
	assert.Contains(t, sql, "ux_payments_session_id ON payments(session_id)")
}
