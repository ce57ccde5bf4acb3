package database

import (
	"errors"
	"fmt"

	"earnx/config"
	"earnx/internal/domain"
	"earnx/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("database: driver %q has no SQL backend", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.AuditLog{},
	)
}

// UserCreator is the part of the user store SeedAdmin needs.
type UserCreator interface {
	GetByEmail(email string) (*models.User, error)
	Create(u *models.User) error
	Update(u *models.User) error
}

// SeedAdmin creates the operator user from config, or promotes and
// re-passwords an existing user with that email. It does nothing when no
// admin password is configured.
func SeedAdmin(users UserCreator, cfg config.AdminConfig) (*models.User, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := users.GetByEmail(cfg.Email)
	switch {
	case err == nil:
		u.Role = domain.RoleAdmin
		u.PasswordHash = string(hash)
		if err := users.Update(u); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		return u, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = &models.User{
			ID:           uuid.NewString(),
			Name:         cfg.Name,
			Email:        cfg.Email,
			PasswordHash: string(hash),
			Role:         domain.RoleAdmin,
		}
		if err := users.Create(u); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("seed admin: %w", err)
	}
}
