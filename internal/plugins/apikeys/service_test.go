package apikeys

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/questlog-app/questlog/internal/apperror"
)

type mockAPIKeyRepo struct {
	createFn         func(ctx context.Context, key *APIKey) error
	findByPrefixFn   func(ctx context.Context, prefix string) (*APIKey, error)
	listByCampaignFn func(ctx context.Context, campaignID string) ([]APIKey, error)
	updateActiveFn   func(ctx context.Context, campaignID string, id int64, active bool) error
	updateLastUsedFn func(ctx context.Context, id int64, ip string) error
	deleteFn         func(ctx context.Context, campaignID string, id int64) error
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, key *APIKey) error {
	if m.createFn != nil {
		return m.createFn(ctx, key)
	}
	key.ID = 1
	return nil
}

func (m *mockAPIKeyRepo) FindByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	if m.findByPrefixFn != nil {
		return m.findByPrefixFn(ctx, prefix)
	}
	return nil, apperror.NewNotFound("api key not found")
}

func (m *mockAPIKeyRepo) ListByCampaign(ctx context.Context, campaignID string) ([]APIKey, error) {
	if m.listByCampaignFn != nil {
		return m.listByCampaignFn(ctx, campaignID)
	}
	return nil, nil
}

func (m *mockAPIKeyRepo) UpdateActive(ctx context.Context, campaignID string, id int64, active bool) error {
	if m.updateActiveFn != nil {
		return m.updateActiveFn(ctx, campaignID, id, active)
	}
	return nil
}

func (m *mockAPIKeyRepo) UpdateLastUsed(ctx context.Context, id int64, ip string) error {
	if m.updateLastUsedFn != nil {
		return m.updateLastUsedFn(ctx, id, ip)
	}
	return nil
}

func (m *mockAPIKeyRepo) Delete(ctx context.Context, campaignID string, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, campaignID, id)
	}
	return nil
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status code %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func TestCreateKeyReturnsRawOnce(t *testing.T) {
	var stored *APIKey
	repo := &mockAPIKeyRepo{
		createFn: func(ctx context.Context, key *APIKey) error {
			key.ID = 7
			stored = key
			return nil
		},
	}
	svc := NewAPIKeyService(repo)

	result, err := svc.CreateKey(context.Background(), "owner-1", CreateAPIKeyInput{
		Name:        "Foundry sync",
		CampaignID:  "camp-1",
		Permissions: []Permission{PermRead, PermWrite},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(result.RawKey, "ql_") {
		t.Errorf("expected ql_ key prefix, got %q", result.RawKey[:8])
	}
	if result.Key.KeyPrefix != result.RawKey[:keyPrefixLen] {
		t.Errorf("display prefix must match the raw key start")
	}
	if stored == nil {
		t.Fatal("expected key to be stored")
	}
	if stored.KeyHash == result.RawKey {
		t.Error("plaintext key must never be stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(result.RawKey)); err != nil {
		t.Errorf("stored hash does not verify against the raw key: %v", err)
	}
}

func TestCreateKeyInvalidPermission(t *testing.T) {
	svc := NewAPIKeyService(&mockAPIKeyRepo{})

	_, err := svc.CreateKey(context.Background(), "owner-1", CreateAPIKeyInput{
		Name:        "bad",
		CampaignID:  "camp-1",
		Permissions: []Permission{"admin"},
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestCreateKeyRequiresPermissions(t *testing.T) {
	svc := NewAPIKeyService(&mockAPIKeyRepo{})

	_, err := svc.CreateKey(context.Background(), "owner-1", CreateAPIKeyInput{
		Name:       "empty",
		CampaignID: "camp-1",
	})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

// issueKey creates a key through the service and returns the raw key plus
// a repo that serves the stored record by prefix.
func issueKey(t *testing.T, mutate func(*APIKey)) (APIKeyService, string) {
	t.Helper()

	var stored *APIKey
	repo := &mockAPIKeyRepo{
		createFn: func(ctx context.Context, key *APIKey) error {
			key.ID = 1
			stored = key
			return nil
		},
		findByPrefixFn: func(ctx context.Context, prefix string) (*APIKey, error) {
			if stored != nil && stored.KeyPrefix == prefix {
				return stored, nil
			}
			return nil, apperror.NewNotFound("api key not found")
		},
	}
	svc := NewAPIKeyService(repo)

	result, err := svc.CreateKey(context.Background(), "owner-1", CreateAPIKeyInput{
		Name:        "test key",
		CampaignID:  "camp-1",
		Permissions: []Permission{PermRead},
	})
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}
	if mutate != nil {
		mutate(stored)
	}
	return svc, result.RawKey
}

func TestAuthenticateKeyRoundTrip(t *testing.T) {
	svc, rawKey := issueKey(t, nil)

	key, err := svc.AuthenticateKey(context.Background(), rawKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.UserID != "owner-1" || key.CampaignID != "camp-1" {
		t.Errorf("unexpected key record: %+v", key)
	}
}

func TestAuthenticateKeyWrongSecret(t *testing.T) {
	svc, rawKey := issueKey(t, nil)

	// Same prefix, different secret.
	forged := rawKey[:keyPrefixLen] + strings.Repeat("0", len(rawKey)-keyPrefixLen)
	_, err := svc.AuthenticateKey(context.Background(), forged)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestAuthenticateKeyDeactivated(t *testing.T) {
	svc, rawKey := issueKey(t, func(k *APIKey) { k.IsActive = false })

	_, err := svc.AuthenticateKey(context.Background(), rawKey)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestAuthenticateKeyExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	svc, rawKey := issueKey(t, func(k *APIKey) { k.ExpiresAt = &past })

	_, err := svc.AuthenticateKey(context.Background(), rawKey)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestAuthenticateKeyTooShort(t *testing.T) {
	svc := NewAPIKeyService(&mockAPIKeyRepo{})

	_, err := svc.AuthenticateKey(context.Background(), "ql_")
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestHasPermission(t *testing.T) {
	key := &APIKey{Permissions: []Permission{PermRead}}
	if !key.HasPermission(PermRead) {
		t.Error("expected read permission")
	}
	if key.HasPermission(PermWrite) {
		t.Error("did not expect write permission")
	}
}
