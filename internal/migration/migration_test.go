package migration

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	assert.Equal(t, ups, downs)

	var versions []string
	for v := range ups {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	assert.Equal(t, []string{
		"000001_campaigns",
		"000002_wallets",
		"000003_donations",
		"000004_webhook_events",
		"000005_casbin_rule",
		"000006_audit_logs",
	}, versions)
}

func TestRunFallsBackToAutoMigrate(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn))

	for _, table := range []string{"campaigns", "wallets", "wallet_transactions", "donations", "payment_transactions", "webhook_events", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
