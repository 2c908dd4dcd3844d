package users

import (
	"database/sql"
	"errors"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Roles, in decreasing order of capability. Admins manage users and see
// stats, editors see stats, viewers hold an account with no stats access.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type User struct {
	ID                  uint   `gorm:"primaryKey"`
	Email               string `gorm:"uniqueIndex"`
	EncryptedPassword   string
	Role                string `gorm:"size:16;not null;default:viewer"`
	ResetPasswordToken  sql.NullString
	ResetPasswordSentAt sql.NullTime
	RememberCreatedAt   sql.NullTime
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = gorm.ErrRecordNotFound

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor || role == RoleViewer
}

// CanViewStats reports whether a role grants access to the stats API.
func CanViewStats(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}

// FindByEmail retrieves a user by email.
func FindByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Count returns the number of registered users.
func Count(db *gorm.DB) (int64, error) {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUser creates a new user with the supplied credentials and role.
// It returns ErrUserExists if the email is already registered.
func CreateUser(dbConn *gorm.DB, email, password, role string) error {
	if _, err := FindByEmail(dbConn, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if email == "" {
		return errors.New("email cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if !ValidRole(role) {
		return errors.New("invalid role")
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	newUser := User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		Role:              role,
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Create(&newUser).Error
	})
}

// CreateAdminUser creates a new admin user with the supplied credentials.
func CreateAdminUser(dbConn *gorm.DB, email, password string) error {
	return CreateUser(dbConn, email, password, RoleAdmin)
}

// ChangePassword updates a user's password given their email.
func ChangePassword(dbConn *gorm.DB, email, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// SetupAdminUserIfNotExists creates a default admin user in the database
// if it doesn't already exist.
func SetupAdminUserIfNotExists(dbConn *gorm.DB, email string) {
	logger := slog.Default()
	hashedPassword, err := crypto.GeneratePasswordHash("password")
	if err != nil {
		logger.Error("Failed to generate password hash", slog.Any("error", err))
		return
	}
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO users (email, encrypted_password, role, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(email) DO NOTHING
        `, email, hashedPassword, RoleAdmin, time.Now().UTC(), time.Now().UTC()).Error
	})
	if err != nil {
		logger.Error("Failed to upsert admin user", slog.String("email", email), slog.Any("error", err))
		return
	}
	logger.Info("Ensured admin user exists", slog.String("email", email))
}
