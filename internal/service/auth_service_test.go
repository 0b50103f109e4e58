package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/acadportal-api/internal/models"
	appErrors "github.com/noah-isme/acadportal-api/pkg/errors"
)

type fakeAuthRepo struct {
	mu           sync.Mutex
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	tokens       map[string]*models.RefreshToken
	revokedAll   []string
	nextTokenID  int
}

func newFakeAuthRepo(users ...*models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
		tokens:       make(map[string]*models.RefreshToken),
	}
	for _, u := range users {
		repo.usersByEmail[u.Email] = u
		repo.usersByID[u.ID] = u
	}
	return repo
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (f *fakeAuthRepo) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := f.usersByID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTokenID++
	token.ID = fmt.Sprintf("rt-%d", f.nextTokenID)
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedAll = append(f.revokedAll, userID)
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	sent  int
	users []string
}

func (n *captureNotifier) Notify(_ context.Context, userID, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.users = append(n.users, userID)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T, users ...*models.User) (*AuthService, *fakeAuthRepo, *captureNotifier) {
	t.Helper()
	repo := newFakeAuthRepo(users...)
	students := &fakeStudentAccounts{byUserID: map[string]*models.StudentDetail{
		"user-student": {Student: models.Student{ID: "stu-profile-1", UserID: "user-student", Active: true}},
	}}
	faculty := &fakeFacultyAccounts{byUserID: map[string]*models.Faculty{
		"user-faculty": {ID: "fac-profile-1", UserID: "user-faculty", Active: true},
	}}
	notifier := &captureNotifier{}
	svc := NewAuthService(repo, students, faculty, notifier, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "acadportal-test",
	})
	return svc, repo, notifier
}

func TestAuthServiceLoginEmbedsStudentProfileClaim(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &models.User{
		ID:           "user-student",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "hunter22"),
		Role:         models.RoleStudent,
		Active:       true,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "hunter22"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-student", claims.UserID)
	assert.Equal(t, "stu-profile-1", claims.ProfileID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginEmbedsFacultyProfileClaim(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &models.User{
		ID:           "user-faculty",
		Email:        "faculty@example.com",
		PasswordHash: hashPassword(t, "hunter22"),
		Role:         models.RoleFaculty,
		Active:       true,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "faculty@example.com", Password: "hunter22"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "fac-profile-1", claims.ProfileID)
}

func TestAuthServiceLoginAdminHasNoProfileClaim(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &models.User{
		ID:           "user-admin",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "hunter22"),
		Role:         models.RoleAdmin,
		Active:       true,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "hunter22"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, claims.ProfileID)
}

func TestAuthServiceLoginInvalidPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &models.User{
		ID:           "user-admin",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "hunter22"),
		Role:         models.RoleAdmin,
		Active:       true,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshCarriesProfileClaim(t *testing.T) {
	svc, _, _ := newAuthFixture(t, &models.User{
		ID:           "user-student",
		Email:        "student@example.com",
		PasswordHash: hashPassword(t, "hunter22"),
		Role:         models.RoleStudent,
		Active:       true,
	})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "hunter22"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	claims, err := svc.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-profile-1", claims.ProfileID)
}

func TestAuthServiceSetAccountActiveNotifies(t *testing.T) {
	svc, repo, notifier := newAuthFixture(t, &models.User{
		ID:     "user-student",
		Email:  "student@example.com",
		Role:   models.RoleStudent,
		Active: false,
	})

	require.NoError(t, svc.SetAccountActive(context.Background(), "user-student", true))
	assert.Equal(t, 1, notifier.sent)
	assert.Equal(t, []string{"user-student"}, notifier.users)

	require.NoError(t, svc.SetAccountActive(context.Background(), "user-student", false))
	assert.Equal(t, 2, notifier.sent)
	assert.Equal(t, []string{"user-student"}, repo.revokedAll)
}
