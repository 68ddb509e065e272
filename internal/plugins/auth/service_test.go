package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/questlog-app/questlog/internal/apperror"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn          func(ctx context.Context, user *User) error
	findByIDFn        func(ctx context.Context, id string) (*User, error)
	findByEmailFn     func(ctx context.Context, email string) (*User, error)
	emailExistsFn     func(ctx context.Context, email string) (bool, error)
	updateLastLoginFn func(ctx context.Context, id string) error
	updateProfileFn   func(ctx context.Context, id, displayName string, avatarPath *string) error
	updatePasswordFn  func(ctx context.Context, id, passwordHash string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, displayName string, avatarPath *string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, displayName, avatarPath)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

// --- Test Helpers ---

// newTestAuthService creates an authService backed by a miniredis instance.
func newTestAuthService(t *testing.T, repo *mockUserRepo) *authService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &authService{
		repo:       repo,
		redis:      rdb,
		sessionTTL: 24 * time.Hour,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			if user.Email != "alice@example.com" {
				t.Errorf("expected email alice@example.com, got %s", user.Email)
			}
			if user.IsAdmin {
				t.Error("expected non-admin user")
			}
			if user.PasswordHash == "" {
				t.Error("expected password hash to be set")
			}
			return nil
		},
	}
	svc := newTestAuthService(t, repo)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Password:    "secure-password-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "taken@example.com",
		DisplayName: "Taken",
		Password:    "secure-password-123",
	})
	assertAppError(t, err, http.StatusConflict)
}

// --- Password Hashing Tests ---

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}

	if !verifyPassword("correct horse battery staple", hash) {
		t.Error("correct password did not verify")
	}
	if verifyPassword("wrong password", hash) {
		t.Error("wrong password verified")
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	for _, bad := range []string{"", "not-a-hash", "$argon2id$v=19$garbage"} {
		if verifyPassword("anything", bad) {
			t.Errorf("malformed hash %q verified", bad)
		}
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := hashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := hashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ by salt")
	}
}

// --- Login and Session Tests ---

func testUser(t *testing.T, password string) *User {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	return &User{
		ID:           "user-1",
		Email:        "alice@example.com",
		DisplayName:  "Alice",
		PasswordHash: hash,
	}
}

func TestLogin_SessionRoundTrip(t *testing.T) {
	user := testUser(t, "secure-password-123")
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(t, repo)

	token, loggedIn, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "secure-password-123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("logged in user = %s, want %s", loggedIn.ID, user.ID)
	}

	session, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if session.UserID != user.ID || session.Email != user.Email {
		t.Errorf("session carries %s/%s, want %s/%s", session.UserID, session.Email, user.ID, user.Email)
	}

	if err := svc.DestroySession(context.Background(), token); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	_, err = svc.ValidateSession(context.Background(), token)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "secure-password-123")
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(t, repo)

	_, _, err := svc.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	// Unknown email and wrong password must be indistinguishable.
	svc := newTestAuthService(t, &mockUserRepo{})

	_, _, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "anything",
	})
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestValidateSession_UnknownToken(t *testing.T) {
	svc := newTestAuthService(t, &mockUserRepo{})

	_, err := svc.ValidateSession(context.Background(), "deadbeef")
	assertAppError(t, err, http.StatusUnauthorized)
}

// --- Password Change Tests ---

func TestChangePassword_Success(t *testing.T) {
	user := testUser(t, "old-password-123")
	var newHash string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*User, error) {
			return user, nil
		},
		updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	svc := newTestAuthService(t, repo)

	err := svc.ChangePassword(context.Background(), "user-1", "old-password-123", "new-password-456")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if newHash == "" {
		t.Fatal("password hash was not updated")
	}
	if !verifyPassword("new-password-456", newHash) {
		t.Error("new password does not verify against stored hash")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	user := testUser(t, "old-password-123")
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*User, error) {
			return user, nil
		},
		updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
			t.Error("password must not be updated when current password is wrong")
			return nil
		},
	}
	svc := newTestAuthService(t, repo)

	err := svc.ChangePassword(context.Background(), "user-1", "not-the-password", "new-password-456")
	assertAppError(t, err, http.StatusUnprocessableEntity)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Fields["current_password"] == "" {
		t.Error("expected a field error keyed on current_password")
	}
}

// --- UUID Tests ---

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestGenerateUUID_Format(t *testing.T) {
	id := generateUUID()
	if !uuidPattern.MatchString(id) {
		t.Errorf("generateUUID() = %q, not a v4 UUID", id)
	}
}

func TestGenerateUUID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}
