package db

import (
	"fmt"

	"github.com/creatorpilot/creditledger/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// SQLite stores the jsonb metadata column as plain text; no extra work.
	if DialectName(conn) == DialectPostgres {
		if errIndex := conn.Exec(`
			CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_created
			ON credit_transactions (user_id, created_at DESC)
		`).Error; errIndex != nil {
			return fmt.Errorf("db: create transaction index: %w", errIndex)
		}
	}

	return nil
}
