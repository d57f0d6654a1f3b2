// Package store – token repository.
//
// The repository follows a "thin" approach: persistence only, no policy.
// A single row (fixed account key) holds the latest refresh token; every
// save overwrites it, because only the newest token is valid against the
// vendor once rotation has happened.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountKey is the fixed upsert key: the monitor is single-tenant and
// holds exactly one vendor account.
const accountKey = "default"

// StoredToken is the persisted refresh-token row.
type StoredToken struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Account   string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Token     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for StoredToken.
func (StoredToken) TableName() string { return "refresh_tokens" }

// SaveToken upserts the refresh token. Safe to call from the coordinator's
// rotation hook: last write wins.
func SaveToken(ctx context.Context, db *gorm.DB, token string) error {
	row := &StoredToken{
		ID:        uuid.NewString(),
		Account:   accountKey,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
		}).
		Create(row).Error
}

// LoadToken returns the persisted refresh token, or "" when none has been
// saved yet (a fresh install before the first successful login).
func LoadToken(ctx context.Context, db *gorm.DB) (string, error) {
	var row StoredToken
	err := db.WithContext(ctx).Where("account = ?", accountKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Token, nil
}
