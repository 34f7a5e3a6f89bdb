// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/clientbook/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// Tenant is a seeded organization with its admin profile.
type Tenant struct {
	Org   models.Org
	Admin models.Profile
}

const Password = "correct-horse-battery"

func SeedTenant(t testing.TB, db *gorm.DB, name, email string) Tenant {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	tenant := Tenant{Org: models.Org{Name: name, Currency: "USD"}}
	require.NoError(t, db.Create(&tenant.Org).Error)
	tenant.Admin = models.Profile{
		OrgID:        tenant.Org.ID,
		Email:        email,
		FullName:     name + " Admin",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&tenant.Admin).Error)
	return tenant
}

func SeedClient(t testing.TB, db *gorm.DB, orgID, name string) models.Client {
	t.Helper()
	c := models.Client{OrgID: orgID, Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
