package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pagetrail/internal/testsupport"
	"pagetrail/internal/users"
)

func TestFindByEmail(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	t.Run("finds existing user", func(t *testing.T) {
		testUser := testsupport.CreateTestUser(db, "test@example.com", "password123")

		foundUser, err := users.FindByEmail(db, "test@example.com")

		require.NoError(t, err)
		assert.NotNil(t, foundUser)
		assert.Equal(t, testUser.Email, foundUser.Email)
		assert.Equal(t, testUser.ID, foundUser.ID)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		foundUser, err := users.FindByEmail(db, "nonexistent@example.com")

		assert.Error(t, err)
		assert.Nil(t, foundUser)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("returns error for empty email", func(t *testing.T) {
		foundUser, err := users.FindByEmail(db, "")

		assert.Error(t, err)
		assert.Nil(t, foundUser)
	})
}

func TestCreateUser(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	t.Run("creates user with role", func(t *testing.T) {
		err := users.CreateUser(db, "editor@example.com", "securepassword123", users.RoleEditor)
		require.NoError(t, err)

		foundUser, err := users.FindByEmail(db, "editor@example.com")
		require.NoError(t, err)
		assert.Equal(t, users.RoleEditor, foundUser.Role)
		assert.NotEmpty(t, foundUser.EncryptedPassword)
	})

	t.Run("returns error when user already exists", func(t *testing.T) {
		email := "existing@example.com"

		err := users.CreateUser(db, email, "password123", users.RoleViewer)
		require.NoError(t, err)

		err = users.CreateUser(db, email, "password123", users.RoleViewer)
		assert.ErrorIs(t, err, users.ErrUserExists)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		err := users.CreateUser(db, "badrole@example.com", "password123", "superuser")
		assert.Error(t, err)
	})

	t.Run("returns error for empty email", func(t *testing.T) {
		err := users.CreateUser(db, "", "password123", users.RoleAdmin)
		assert.Error(t, err)
	})

	t.Run("returns error for empty password", func(t *testing.T) {
		err := users.CreateUser(db, "test2@example.com", "", users.RoleAdmin)
		assert.Error(t, err)
	})
}

func TestCreateAdminUser(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	err := users.CreateAdminUser(db, "newadmin@example.com", "securepassword123")
	require.NoError(t, err)

	foundUser, err := users.FindByEmail(db, "newadmin@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, foundUser.Role)
}

func TestRoleChecks(t *testing.T) {
	assert.True(t, users.CanViewStats(users.RoleAdmin))
	assert.True(t, users.CanViewStats(users.RoleEditor))
	assert.False(t, users.CanViewStats(users.RoleViewer))
	assert.False(t, users.CanViewStats(""))

	assert.True(t, users.ValidRole(users.RoleAdmin))
	assert.True(t, users.ValidRole(users.RoleEditor))
	assert.True(t, users.ValidRole(users.RoleViewer))
	assert.False(t, users.ValidRole("root"))
}

func TestCount(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	count, err := users.Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, users.CreateAdminUser(db, "first@example.com", "password123"))

	count, err = users.Count(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestChangePassword(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	t.Run("changes password successfully", func(t *testing.T) {
		email := "changepass@example.com"

		err := users.CreateAdminUser(db, email, "oldpassword123")
		require.NoError(t, err)

		userBefore, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		oldEncryptedPassword := userBefore.EncryptedPassword

		err = users.ChangePassword(db, email, "newpassword456")
		require.NoError(t, err)

		userAfter, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		assert.NotEqual(t, oldEncryptedPassword, userAfter.EncryptedPassword)
		assert.NotEmpty(t, userAfter.EncryptedPassword)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		err := users.ChangePassword(db, "nonexistent@example.com", "newpassword")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("returns error for empty password", func(t *testing.T) {
		email := "testuser@example.com"

		err := users.CreateAdminUser(db, email, "password123")
		require.NoError(t, err)

		err = users.ChangePassword(db, email, "")
		assert.Error(t, err)
	})
}

func TestSetupAdminUserIfNotExists(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	db := dbManager.GetConnection()

	t.Run("creates admin if not exists", func(t *testing.T) {
		email := "setup@example.com"

		users.SetupAdminUserIfNotExists(db, email)

		foundUser, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		assert.Equal(t, email, foundUser.Email)
		assert.Equal(t, users.RoleAdmin, foundUser.Role)
	})

	t.Run("does not error if user already exists", func(t *testing.T) {
		email := "existing-setup@example.com"

		err := users.CreateAdminUser(db, email, "password123")
		require.NoError(t, err)

		users.SetupAdminUserIfNotExists(db, email)

		foundUser, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		assert.Equal(t, email, foundUser.Email)
	})
}
