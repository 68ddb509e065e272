// Package access implements the campaign permission core shared by every
// content plugin: role-scoped visibility narrowing and the mutation guard
// for create/edit/delete on campaign-owned records.
//
// The rules in one place:
//
//	visibility  OWNER/GM/OBSERVER see the whole campaign; PLAYER sees only
//	            records whose owning user is the player (records without an
//	            owning user are campaign-visible to everyone with a role).
//	create      OWNER, GM, PLAYER may create; OBSERVER may not.
//	edit        record owner, GM, or campaign owner.
//	delete      same as edit, except the campaign can revoke GM deletion of
//	            player-owned records (AllowGMCharacterDeletion=false).
//
// Deletion is always a soft-delete; soft-deleted records are invisible
// unless a scope explicitly includes them. All functions here are pure --
// they never touch storage and never default to allow.
package access

import (
	"github.com/questlog-app/questlog/internal/plugins/campaigns"
)

// Entity is the capability surface the permission core needs from any
// campaign-owned record. Concrete subtypes (character kinds, scenes with
// ordering, nested locations) never reach this package; visibility depends
// only on campaign, owner, and deletion state.
type Entity interface {
	// EntityCampaignID returns the owning campaign's ID.
	EntityCampaignID() string

	// EntityPlayerOwner returns the owning user's ID, or "" for records
	// with no per-user owner (items, scenes, locations).
	EntityPlayerOwner() string

	// EntityDeleted reports whether the record is soft-deleted.
	EntityDeleted() bool
}

// Scope describes one resolved request against one campaign: who is asking,
// with what role, and whether soft-deleted records are in play. Built once
// per request from the campaign context and passed down explicitly.
type Scope struct {
	CampaignID     string
	UserID         string
	Role           campaigns.Role
	IncludeDeleted bool
}

// ScopeFrom builds the request scope from a resolved campaign context.
// Site-admin elevation is already folded into EffectiveRole.
func ScopeFrom(cc *campaigns.CampaignContext, userID string) Scope {
	return Scope{
		CampaignID: cc.Campaign.ID,
		UserID:     userID,
		Role:       cc.EffectiveRole(),
	}
}

// WithDeleted returns a copy of the scope that includes soft-deleted rows
// when requested. Only GM and owner may see deleted records; for anyone
// else the request is silently ignored rather than rejected.
func (s Scope) WithDeleted(requested bool) Scope {
	if requested && s.Role >= campaigns.RoleGM {
		s.IncludeDeleted = true
	}
	return s
}

// OwnerRestricted reports whether this scope only sees records owned by
// the requesting user. Only PLAYER is row-restricted; OBSERVER is read-only
// but sees the full campaign.
func (s Scope) OwnerRestricted() bool {
	return s.Role == campaigns.RolePlayer
}

// CanSee reports whether a single record is visible under this scope.
// This is the same predicate repositories express in SQL; keep the two in
// sync (see the repository WHERE-clause builders).
func (s Scope) CanSee(e Entity) bool {
	if e.EntityCampaignID() != s.CampaignID {
		return false
	}
	if e.EntityDeleted() && !s.IncludeDeleted {
		return false
	}
	if s.OwnerRestricted() && e.EntityPlayerOwner() != "" && e.EntityPlayerOwner() != s.UserID {
		return false
	}
	return true
}

// Narrow filters an already-fetched collection down to what the scope may
// see. Pure and composable: it does not execute, sort, or page anything.
func Narrow[T Entity](in []T, s Scope) []T {
	out := make([]T, 0, len(in))
	for _, e := range in {
		if s.CanSee(e) {
			out = append(out, e)
		}
	}
	return out
}

// CanCreate reports whether a role may create records in a campaign.
// Observers are read-only. (Whether observers should be allowed to create
// characters was left open upstream; Questlog answers no, uniformly.)
func CanCreate(role campaigns.Role) bool {
	return role >= campaigns.RolePlayer
}

// CanEdit reports whether the scope's user may edit a record: the record's
// owning user, a GM, or the campaign owner. The owning user and campaign
// reference are immutable from the edit surface regardless -- services
// never write those columns on update.
func CanEdit(s Scope, e Entity) bool {
	if s.Role >= campaigns.RoleGM {
		return true
	}
	return e.EntityPlayerOwner() != "" && e.EntityPlayerOwner() == s.UserID
}

// CanDelete reports whether the scope's user may soft-delete a record.
// Same predicate as CanEdit, except AllowGMCharacterDeletion=false revokes
// a GM's ability to delete player-owned records they don't own themselves.
// Edit rights are unaffected by the toggle.
func CanDelete(campaign *campaigns.Campaign, s Scope, e Entity) bool {
	if !CanEdit(s, e) {
		return false
	}
	if s.Role == campaigns.RoleGM &&
		e.EntityPlayerOwner() != "" &&
		e.EntityPlayerOwner() != s.UserID &&
		!campaign.AllowGMCharacterDeletion {
		return false
	}
	return true
}
