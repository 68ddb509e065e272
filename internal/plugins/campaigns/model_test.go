package campaigns

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/questlog-app/questlog/internal/validate"
)

func TestRoleOrdering(t *testing.T) {
	// Permission checks rely on the numeric ordering of roles.
	ordered := []Role{RoleNone, RoleObserver, RolePlayer, RoleGM, RoleOwner}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			t.Errorf("%v should sort below %v", ordered[i-1], ordered[i])
		}
	}
}

func TestRoleStringRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleObserver, RolePlayer, RoleGM, RoleOwner} {
		if got := RoleFromString(role.String()); got != role {
			t.Errorf("RoleFromString(%q) = %v, want %v", role.String(), got, role)
		}
	}
	if RoleFromString("superuser") != RoleNone {
		t.Error("unknown role strings should map to RoleNone")
	}
	if RoleNone.String() != "" {
		t.Errorf("RoleNone.String() = %q, want empty", RoleNone.String())
	}
}

func TestRoleIsValidExcludesOwner(t *testing.T) {
	// Ownership is a campaign column, never an assignable membership role.
	if RoleOwner.IsValid() {
		t.Error("RoleOwner must not be assignable as a membership role")
	}
	if RoleNone.IsValid() {
		t.Error("RoleNone must not be assignable as a membership role")
	}
	for _, role := range []Role{RoleObserver, RolePlayer, RoleGM} {
		if !role.IsValid() {
			t.Errorf("%v should be a valid membership role", role)
		}
	}
}

func TestEffectiveRoleSiteAdmin(t *testing.T) {
	cc := &CampaignContext{
		Campaign:    &Campaign{ID: "camp-1"},
		MemberRole:  RoleNone,
		IsSiteAdmin: true,
	}
	if got := cc.EffectiveRole(); got != RoleOwner {
		t.Errorf("site admin effective role = %v, want RoleOwner", got)
	}

	cc.IsSiteAdmin = false
	cc.MemberRole = RolePlayer
	if got := cc.EffectiveRole(); got != RolePlayer {
		t.Errorf("member effective role = %v, want RolePlayer", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Curse of Strahd", "curse-of-strahd"},
		{"  Tomb of Annihilation!  ", "tomb-of-annihilation"},
		{"D&D 5e: Lost Mine", "d-d-5e-lost-mine"},
		{"---", "campaign"},
		{"", "campaign"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.name); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	// The slug column is VARCHAR(120); the base must leave room for
	// uniqueness suffixes.
	long := strings.Repeat("strahd ", 40)
	slug := Slugify(long)
	if len(slug) > maxSlugBaseLen {
		t.Errorf("slug length = %d, want <= %d", len(slug), maxSlugBaseLen)
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("truncated slug %q has a trailing hyphen", slug)
	}
}

func TestCampaignNameLengthMatchesColumn(t *testing.T) {
	// The name column is VARCHAR(100); anything the validator passes must
	// fit, or the insert fails as an opaque 500 instead of a field error.
	err := validate.Struct(CreateCampaignRequest{Name: strings.Repeat("a", 150)})
	assertAppError(t, err, http.StatusUnprocessableEntity)

	if err := validate.Struct(CreateCampaignRequest{Name: strings.Repeat("a", 100)}); err != nil {
		t.Errorf("100-char name should validate, got %v", err)
	}
}

func TestInvitationState(t *testing.T) {
	inv := &Invitation{ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if inv.IsExpired() {
		t.Error("future expiry reported as expired")
	}
	if inv.IsAccepted() {
		t.Error("unused invitation reported as accepted")
	}

	inv.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if !inv.IsExpired() {
		t.Error("past expiry not reported as expired")
	}

	now := time.Now().UTC()
	inv.AcceptedAt = &now
	if !inv.IsAccepted() {
		t.Error("redeemed invitation not reported as accepted")
	}
}
