package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/pkg/utils"
)

type memorySessions struct {
	mu          sync.Mutex
	blacklisted map[string]time.Duration
}

func newMemorySessions() *memorySessions {
	return &memorySessions{blacklisted: map[string]time.Duration{}}
}

func (s *memorySessions) BlacklistToken(ctx context.Context, token string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[token] = expiration
	return nil
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessions := newMemorySessions()
	jwt := utils.NewJWTManager("test-secret", 1)
	users := NewUserService(repository.NewUserRepository(f.db), repository.NewDepartmentRepository(f.db), jwt, sessions)

	resp, err := users.Register(ctx, &models.RegisterRequest{
		Name:     "Asha",
		Email:    " Asha@Example.com ",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", resp.User.Email)
	assert.Equal(t, models.RoleCitizen, resp.User.Role)
	assert.Equal(t, models.DefaultNotificationPreferences(), resp.User.NotificationPreferences)

	claims, err := jwt.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = users.Register(ctx, &models.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = users.Login(ctx, &models.LoginRequest{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = users.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	login, err := users.Login(ctx, &models.LoginRequest{Email: "ASHA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotNil(t, login.User.LastLoginAt)

	caller := &models.User{ID: login.User.ID, Role: models.RoleCitizen}
	require.NoError(t, users.Logout(ctx, as(caller), login.Token, time.Minute))
	assert.Equal(t, time.Minute, sessions.blacklisted[login.Token])
}

func TestUserService_LogoutWithoutSessionStore(t *testing.T) {
	f := newFixture(t)
	err := f.users.Logout(context.Background(), as(f.citizen), "token", time.Minute)
	assert.ErrorIs(t, err, apperr.ErrDependency)
}

func TestUserService_Preferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	off := false
	prefs, err := f.users.UpdatePreferences(ctx, as(f.citizen), &models.PreferencesUpdateRequest{
		InApp: &models.ChannelPreferencesPatch{Comments: &off},
	})
	require.NoError(t, err)
	assert.False(t, prefs.InApp.Comments)
	assert.True(t, prefs.InApp.Enabled)
	assert.True(t, prefs.Email.Comments)

	prefs, err = f.users.ToggleEmail(ctx, as(f.citizen), &off)
	require.NoError(t, err)
	assert.False(t, prefs.Email.Enabled)
	assert.True(t, prefs.Email.StatusUpdates, "the per-topic toggles survive the master switch")
	assert.False(t, prefs.InApp.Comments)

	flipped, err := f.users.ToggleEmail(ctx, as(f.citizen), nil)
	require.NoError(t, err)
	assert.True(t, flipped.Email.Enabled)
	prefs, err = f.users.ToggleEmail(ctx, as(f.citizen), nil)
	require.NoError(t, err)
	assert.False(t, prefs.Email.Enabled)

	stored, err := f.users.GetPreferences(ctx, as(f.citizen))
	require.NoError(t, err)
	assert.Equal(t, prefs, stored)

	_, err = f.users.UpdatePreferences(ctx, as(f.citizen), &models.PreferencesUpdateRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.users.GetPreferences(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUserService_AdminCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Create(ctx, as(f.admin), &models.UserCreateRequest{
		Name:         "Ravi",
		Email:        "ravi@city.gov",
		Password:     "secret1",
		Role:         models.RoleDepartment,
		DepartmentID: &f.roads.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, user.DepartmentID)
	assert.Equal(t, f.roads.ID, *user.DepartmentID)

	_, err = f.users.Create(ctx, as(f.admin), &models.UserCreateRequest{
		Name: "Mira", Email: "mira@city.gov", Password: "secret1", Role: models.RoleDepartment,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "department staff need a department")

	admin, err := f.users.Create(ctx, as(f.admin), &models.UserCreateRequest{
		Name: "Nina", Email: "nina@city.gov", Password: "secret1", Role: models.RoleAdmin, DepartmentID: &f.roads.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, admin.DepartmentID, "only department staff keep a department")

	_, err = f.users.Create(ctx, as(f.roadsStaff), &models.UserCreateRequest{
		Name: "X", Email: "x@city.gov", Password: "secret1", Role: models.RoleCitizen,
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUserService_AdminUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role := models.RoleDepartment
	_, err := f.users.Update(ctx, as(f.admin), f.citizen.ID, &models.UserUpdateRequest{Role: &role})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	user, err := f.users.Update(ctx, as(f.admin), f.citizen.ID, &models.UserUpdateRequest{Role: &role, DepartmentID: &f.sanitation.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDepartment, user.Role)
	assert.Equal(t, f.sanitation.ID, *user.DepartmentID)

	citizen := models.RoleCitizen
	user, err = f.users.Update(ctx, as(f.admin), f.roadsStaff.ID, &models.UserUpdateRequest{Role: &citizen})
	require.NoError(t, err)
	assert.Nil(t, user.DepartmentID)

	_, err = f.users.Update(ctx, as(f.admin), f.admin.ID, &models.UserUpdateRequest{Role: &citizen})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.ErrorIs(t, f.users.Delete(ctx, as(f.admin), f.admin.ID), apperr.ErrValidation)
	require.NoError(t, f.users.Delete(ctx, as(f.admin), f.sanitationStaff.ID))

	staff, err := f.departments.ListStaff(ctx, as(f.admin), f.sanitation.ID)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, f.citizen.ID, staff[0].ID)

	_, err = f.users.Get(ctx, as(f.admin), f.sanitationStaff.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserService_ListIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role := models.RoleCitizen
	users, total, err := f.users.List(ctx, as(f.admin), &models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	_, _, err = f.users.List(ctx, as(f.citizen), &models.UserFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUserService_SelfService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	me, err := f.users.Get(ctx, as(f.citizen), f.citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, f.citizen.Email, me.Email)

	_, err = f.users.Get(ctx, as(f.citizen), f.roadsStaff.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	mobile := "9111111111"
	updated, err := f.users.Update(ctx, as(f.citizen), f.citizen.ID, &models.UserUpdateRequest{Mobile: &mobile})
	require.NoError(t, err)
	assert.Equal(t, mobile, updated.Mobile)

	admin := models.RoleAdmin
	_, err = f.users.Update(ctx, as(f.citizen), f.citizen.ID, &models.UserUpdateRequest{Role: &admin})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.users.Update(ctx, as(f.citizen), f.roadsStaff.ID, &models.UserUpdateRequest{Mobile: &mobile})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
