package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/domain"
	campaigndomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models are the tables owned by this service, in dependency order.
func Models() []any {
	return []any{
		&campaigndomain.Campaign{},
		&walletdomain.Wallet{},
		&walletdomain.Transaction{},
		&donationdomain.Donation{},
		&donationdomain.PaymentTransaction{},
		&paymentdomain.WebhookEvent{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the schema. Postgres uses the versioned SQL files; sqlite and mysql, which
// are only used for development, fall back to gorm AutoMigrate. casbin_rule is created by
// the casbin adapter on those dialects.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
