package mail

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/questlog-app/questlog/internal/apperror"
)

const testSecret = "test-secret-key-for-smtp-password"

type mockSettingsRepo struct {
	getFn    func(ctx context.Context) (*settingsRow, error)
	upsertFn func(ctx context.Context, row *settingsRow) error
}

func (m *mockSettingsRepo) Get(ctx context.Context) (*settingsRow, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return &settingsRow{Port: 587, Encryption: "starttls"}, nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, row *settingsRow) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, row)
	}
	return nil
}

func assertAppError(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", code)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %d, got %d (%s)", code, appErr.Code, appErr.Message)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("sw0rdfish")

	ct, err := encrypt(plaintext, testSecret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Fatal("ciphertext contains plaintext")
	}

	got, err := decrypt(ct, testSecret)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestDecryptWrongSecretFails(t *testing.T) {
	ct, err := encrypt([]byte("sw0rdfish"), testSecret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := decrypt(ct, "a-different-secret"); err == nil {
		t.Fatal("expected decryption failure with wrong secret")
	}
}

func TestEncryptEmptyIsNil(t *testing.T) {
	ct, err := encrypt(nil, testSecret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct != nil {
		t.Fatalf("expected nil ciphertext for empty input, got %d bytes", len(ct))
	}
}

func TestGetSettingsRedactsPassword(t *testing.T) {
	ct, _ := encrypt([]byte("sw0rdfish"), testSecret)
	repo := &mockSettingsRepo{
		getFn: func(ctx context.Context) (*settingsRow, error) {
			return &settingsRow{
				Host:              "smtp.barovia.example",
				Port:              587,
				Username:          "courier",
				PasswordEncrypted: ct,
				FromAddress:       "keeper@barovia.example",
				Encryption:        "starttls",
				Enabled:           true,
			}, nil
		},
	}
	svc := NewMailService(repo, testSecret)

	settings, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.HasPassword {
		t.Fatal("expected HasPassword true")
	}
	if settings.Host != "smtp.barovia.example" {
		t.Fatalf("unexpected host %q", settings.Host)
	}
}

func TestUpdateSettingsEncryptsPassword(t *testing.T) {
	var saved *settingsRow
	repo := &mockSettingsRepo{
		upsertFn: func(ctx context.Context, row *settingsRow) error {
			saved = row
			return nil
		},
	}
	svc := NewMailService(repo, testSecret)

	err := svc.UpdateSettings(context.Background(), UpdateSettingsRequest{
		Host:        "smtp.barovia.example",
		Port:        465,
		Username:    "courier",
		Password:    "sw0rdfish",
		FromAddress: "keeper@barovia.example",
		Encryption:  "ssl",
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if saved == nil {
		t.Fatal("expected upsert call")
	}
	if bytes.Contains(saved.PasswordEncrypted, []byte("sw0rdfish")) {
		t.Fatal("password stored in plaintext")
	}
	got, err := decrypt(saved.PasswordEncrypted, testSecret)
	if err != nil || string(got) != "sw0rdfish" {
		t.Fatalf("stored password does not decrypt: %q, %v", got, err)
	}
}

func TestUpdateSettingsEmptyPasswordKeepsExisting(t *testing.T) {
	existing, _ := encrypt([]byte("sw0rdfish"), testSecret)
	var saved *settingsRow
	repo := &mockSettingsRepo{
		getFn: func(ctx context.Context) (*settingsRow, error) {
			return &settingsRow{Host: "smtp.barovia.example", PasswordEncrypted: existing}, nil
		},
		upsertFn: func(ctx context.Context, row *settingsRow) error {
			saved = row
			return nil
		},
	}
	svc := NewMailService(repo, testSecret)

	err := svc.UpdateSettings(context.Background(), UpdateSettingsRequest{
		Host:        "smtp.vallaki.example",
		FromAddress: "keeper@barovia.example",
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !bytes.Equal(saved.PasswordEncrypted, existing) {
		t.Fatal("expected existing encrypted password preserved")
	}
	if saved.Host != "smtp.vallaki.example" {
		t.Fatalf("unexpected host %q", saved.Host)
	}
}

func TestUpdateSettingsDefaults(t *testing.T) {
	var saved *settingsRow
	repo := &mockSettingsRepo{
		upsertFn: func(ctx context.Context, row *settingsRow) error {
			saved = row
			return nil
		},
	}
	svc := NewMailService(repo, testSecret)

	err := svc.UpdateSettings(context.Background(), UpdateSettingsRequest{
		Host:        "smtp.barovia.example",
		FromAddress: "keeper@barovia.example",
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if saved.Port != 587 {
		t.Fatalf("expected default port 587, got %d", saved.Port)
	}
	if saved.Encryption != "starttls" {
		t.Fatalf("expected default encryption starttls, got %q", saved.Encryption)
	}
	if saved.FromName != "Questlog" {
		t.Fatalf("expected default from name, got %q", saved.FromName)
	}
}

func TestSendMailNotConfigured(t *testing.T) {
	svc := NewMailService(&mockSettingsRepo{}, testSecret)

	err := svc.SendMail(context.Background(), []string{"ireena@barovia.example"}, "hello", "body")
	assertAppError(t, err, http.StatusBadRequest)
}

func TestIsConfigured(t *testing.T) {
	disabled := NewMailService(&mockSettingsRepo{}, testSecret)
	if disabled.IsConfigured(context.Background()) {
		t.Fatal("expected unconfigured when no settings row exists")
	}

	enabled := NewMailService(&mockSettingsRepo{
		getFn: func(ctx context.Context) (*settingsRow, error) {
			return &settingsRow{Host: "smtp.barovia.example", Enabled: true}, nil
		},
	}, testSecret)
	if !enabled.IsConfigured(context.Background()) {
		t.Fatal("expected configured")
	}
}

func TestTestConnectionRequiresHost(t *testing.T) {
	svc := NewMailService(&mockSettingsRepo{}, testSecret)

	err := svc.TestConnection(context.Background())
	assertAppError(t, err, http.StatusBadRequest)
}

func TestCampaignMailerAdaptsSignature(t *testing.T) {
	repo := &mockSettingsRepo{
		getFn: func(ctx context.Context) (*settingsRow, error) {
			return &settingsRow{}, nil
		},
	}
	mailer := NewCampaignMailer(NewMailService(repo, testSecret))

	// SMTP disabled, so the adapter surfaces the service's error as-is.
	err := mailer.SendMail([]string{"ireena@barovia.example"}, "hello", "body")
	assertAppError(t, err, http.StatusBadRequest)
}
