package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"
	"log/slog"

	"pagetrail/internal/users"
)

// bcrypt hash of "dummy", verified when the email does not exist so
// login takes the same time either way.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// parseCredentials reads email and password from the form body, falling
// back to JSON for API clients.
func parseCredentials(ctx *cartridge.Context) credentials {
	creds := credentials{
		Email:    ctx.FormValue("email"),
		Password: ctx.FormValue("password"),
	}

	if creds.Email == "" && creds.Password == "" {
		var jsonBody credentials
		if err := ctx.BodyParser(&jsonBody); err == nil {
			creds = jsonBody
		}
	}

	return creds
}

// LoginStatusAction handles GET /login. Clients call it to learn whether
// they are authenticated and to pick up the CSRF cookie before posting.
func LoginStatusAction(ctx *cartridge.Context) error {
	authenticated := ctx.Session.IsAuthenticated(ctx.Ctx)

	userCount, err := users.Count(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Failed to count users on login status", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
			"code":  "INTERNAL_ERROR",
		})
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"authenticated": authenticated,
		"setupRequired": userCount == 0,
	})
}

// ProcessLoginAction handles the login submission.
func ProcessLoginAction(ctx *cartridge.Context) error {
	creds := parseCredentials(ctx)

	if creds.Email == "" || creds.Password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
			"code":  "MISSING_CREDENTIALS",
		})
	}

	db := ctx.DB()
	user, err := users.FindByEmail(db, creds.Email)

	// Always verify a password so response time does not reveal whether
	// the email exists.
	var passwordValid bool
	if err != nil {
		ctx.Logger.Debug("User not found during login", slog.String("email", creds.Email))
		crypto.VerifyPassword(dummyPasswordHash, creds.Password)
	} else {
		passwordValid = crypto.VerifyPassword(user.EncryptedPassword, creds.Password)
		if !passwordValid {
			ctx.Logger.Debug("Invalid password attempt", slog.String("email", creds.Email))
		}
	}

	if !passwordValid {
		// Generic message, never reveal whether the email exists
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
			"code":  "INVALID_CREDENTIALS",
		})
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Login failed",
			"code":  "SESSION_ERROR",
		})
	}

	ctx.Logger.Debug("Login successful",
		slog.String("email", creds.Email),
		slog.Int("userId", int(user.ID)))

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

// LogoutAction clears the login session.
func LogoutAction(ctx *cartridge.Context) error {
	ctx.Session.ClearSession(ctx.Ctx)
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logged out",
	})
}

// SetupUserAction handles POST /setup/user, the first-run admin account
// creation. It only works while no user exists.
func SetupUserAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	count, err := users.Count(db)
	if err != nil {
		ctx.Logger.Error("Failed to count users during setup", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
			"code":  "INTERNAL_ERROR",
		})
	}
	if count > 0 {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Setup has already been completed",
			"code":  "SETUP_COMPLETE",
		})
	}

	creds := parseCredentials(ctx)
	if creds.Email == "" || creds.Password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
			"code":  "MISSING_CREDENTIALS",
		})
	}

	if err := users.CreateAdminUser(db, creds.Email, creds.Password); err != nil {
		ctx.Logger.Error("Failed to create admin user during setup", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
			"code":  "USER_CREATION_ERROR",
		})
	}

	ctx.Logger.Info("Admin user created during setup", slog.String("email", creds.Email))
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Admin user created",
	})
}
