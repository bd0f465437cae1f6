package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/stretchr/testify/require"
)

var userSeq int

func createTestUser(t *testing.T, role string) *models.User {
	t.Helper()
	userSeq++
	name := fmt.Sprintf("db_user_%s_%d_%d", role, userSeq, time.Now().UnixNano())
	user, err := testStore.CreateUser(context.Background(), CreateUserParams{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "not-a-real-hash",
		Role:         role,
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestCreateUser_Defaults(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	require.Equal(t, models.RoleUser, user.Role)
	require.True(t, user.IsActive)
	require.Nil(t, user.LastLogin)
	require.WithinDuration(t, time.Now(), user.CreatedAt, 5*time.Second)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	_, err := testStore.CreateUser(context.Background(), CreateUserParams{
		Username:     user.Username + "_other",
		Email:        user.Email,
		PasswordHash: "not-a-real-hash",
		Role:         models.RoleUser,
	})
	require.ErrorIs(t, err, ErrDuplicateUser)

	dup, err := testStore.GetUserByUsernameOrEmail(context.Background(), user.Username+"_other", "missing@example.com")
	require.NoError(t, err)
	require.Nil(t, dup, "the rejected user must not be persisted")
}

func TestGetActiveUserByLogin(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	byUsername, err := testStore.GetActiveUserByLogin(context.Background(), user.Username)
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	require.Equal(t, user.ID, byUsername.ID)

	byEmail, err := testStore.GetActiveUserByLogin(context.Background(), user.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Equal(t, user.ID, byEmail.ID)

	// Deactivated accounts are invisible to login.
	_, err = testStore.UpdateUser(context.Background(), UpdateUserParams{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: false,
	})
	require.NoError(t, err)

	gone, err := testStore.GetActiveUserByLogin(context.Background(), user.Username)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestUpdateUser_DuplicateCheck(t *testing.T) {
	first := createTestUser(t, models.RoleUser)
	second := createTestUser(t, models.RoleUser)

	exists, err := testStore.OtherUserWithCredentialsExists(context.Background(), second.ID, first.Username, "fresh@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = testStore.OtherUserWithCredentialsExists(context.Background(), second.ID, second.Username, second.Email)
	require.NoError(t, err)
	require.False(t, exists, "a user's own credentials must not count as duplicates")
}

func TestListUsers_Search(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	users, err := testStore.ListUsers(context.Background(), ListUsersParams{
		Search: user.Username,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, user.ID, users[0].ID)

	total, err := testStore.CountUsers(context.Background(), user.Username)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestDeleteUser(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	deleted, err := testStore.DeleteUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	gone, err := testStore.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	deleted, err = testStore.DeleteUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestUpdateLastLogin(t *testing.T) {
	user := createTestUser(t, models.RoleUser)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, testStore.UpdateLastLogin(context.Background(), user.ID, now))

	reloaded, err := testStore.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLogin)
	require.WithinDuration(t, now, *reloaded.LastLogin, time.Second)
}
