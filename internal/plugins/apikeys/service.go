package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/questlog-app/questlog/internal/apperror"
)

// keyBytes is the number of random bytes in a generated API key.
const keyBytes = 32

// keyPrefixLen is the length of the prefix stored for key identification.
const keyPrefixLen = 8

// APIKeyService handles business logic for API key management and
// authentication.
type APIKeyService interface {
	CreateKey(ctx context.Context, userID string, input CreateAPIKeyInput) (*CreateAPIKeyResult, error)
	ListKeys(ctx context.Context, campaignID string) ([]APIKey, error)
	SetKeyActive(ctx context.Context, campaignID string, id int64, active bool) error
	RevokeKey(ctx context.Context, campaignID string, id int64) error

	// AuthenticateKey validates a raw bearer key: prefix lookup, bcrypt
	// verify, active and expiry checks. All failures collapse to the same
	// unauthorized error so callers cannot probe key state.
	AuthenticateKey(ctx context.Context, rawKey string) (*APIKey, error)

	// TouchKey records last-use metadata, fire-and-forget.
	TouchKey(ctx context.Context, id int64, ip string)
}

type apiKeyService struct {
	repo APIKeyRepository
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(repo APIKeyRepository) APIKeyService {
	return &apiKeyService{repo: repo}
}

// CreateKey generates a new key with bcrypt-hashed storage. The plaintext
// is returned once and never persisted.
func (s *apiKeyService) CreateKey(ctx context.Context, userID string, input CreateAPIKeyInput) (*CreateAPIKeyResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "key name is required")
	}
	if len(input.Permissions) == 0 {
		return nil, apperror.NewFieldError("permissions", "at least one permission is required")
	}
	for _, p := range input.Permissions {
		if p != PermRead && p != PermWrite {
			return nil, apperror.NewFieldError("permissions", fmt.Sprintf("invalid permission: %s", p))
		}
	}

	raw := make([]byte, keyBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("generating key: %w", err))
	}
	rawKey := "ql_" + hex.EncodeToString(raw)
	prefix := rawKey[:keyPrefixLen]

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing key: %w", err))
	}

	key := &APIKey{
		KeyHash:     string(hash),
		KeyPrefix:   prefix,
		Name:        name,
		UserID:      userID,
		CampaignID:  input.CampaignID,
		Permissions: input.Permissions,
		IsActive:    true,
		ExpiresAt:   input.ExpiresAt,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	slog.Info("api key created",
		slog.String("prefix", prefix),
		slog.String("user_id", userID),
		slog.String("campaign_id", input.CampaignID),
	)

	return &CreateAPIKeyResult{Key: key, RawKey: rawKey}, nil
}

func (s *apiKeyService) ListKeys(ctx context.Context, campaignID string) ([]APIKey, error) {
	return s.repo.ListByCampaign(ctx, campaignID)
}

func (s *apiKeyService) SetKeyActive(ctx context.Context, campaignID string, id int64, active bool) error {
	if err := s.repo.UpdateActive(ctx, campaignID, id, active); err != nil {
		return err
	}
	slog.Info("api key toggled", slog.Int64("id", id), slog.Bool("active", active))
	return nil
}

func (s *apiKeyService) RevokeKey(ctx context.Context, campaignID string, id int64) error {
	if err := s.repo.Delete(ctx, campaignID, id); err != nil {
		return err
	}
	slog.Info("api key revoked", slog.Int64("id", id))
	return nil
}

func (s *apiKeyService) AuthenticateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	if len(rawKey) < keyPrefixLen {
		return nil, apperror.NewUnauthorized("invalid api key")
	}

	key, err := s.repo.FindByPrefix(ctx, rawKey[:keyPrefixLen])
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid api key")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)); err != nil {
		return nil, apperror.NewUnauthorized("invalid api key")
	}
	if !key.IsActive || key.IsExpired() {
		return nil, apperror.NewUnauthorized("invalid api key")
	}

	return key, nil
}

func (s *apiKeyService) TouchKey(ctx context.Context, id int64, ip string) {
	if err := s.repo.UpdateLastUsed(ctx, id, ip); err != nil {
		slog.Warn("failed to record api key use", slog.Any("error", err))
	}
}
