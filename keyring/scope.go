// Package keyring implements the sharing/keyring aggregates (Scope,
// ResourceGrant) and the wrap/unwrap primitive that binds data keys to a
// scope's key material via a vendor-agnostic secrets.Keeper.
package keyring

import (
	"encoding/json"
	"fmt"

	"github.com/localfirst/eventcore/aggregate"
	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
)

const ScopeAggregateType = "Scope"

// Role is a member's role within a Scope.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Member is one user's membership record inside a Scope. RemovedAt is
// sticky once set: membership rows are never deleted, only marked removed.
type Member struct {
	UserID    string
	Role      Role
	AddedAt   ids.Timestamp
	RemovedAt event.Nullable[ids.Timestamp]
}

func (m Member) Active() bool { return !m.RemovedAt.Valid }

// Scope is the cryptographic membership aggregate under which resource
// keys are wrapped. Its epoch is a strictly increasing, unbounded counter;
// rotating it invalidates grants minted under older epochs without
// cascading any revocation event of its own.
type Scope struct {
	aggregate.Root

	OwnerUserID string
	Epoch       ids.Epoch
	Members     map[string]Member
}

// NewScope constructs an uninitialized Scope ready for Create.
func NewScope(id ids.AggregateID) *Scope {
	s := &Scope{Members: make(map[string]Member)}
	s.Init(id, ScopeAggregateType, s)
	return s
}

// Create emits ScopeCreated followed immediately by the owner's
// ScopeMemberAdded: creating a scope atomically adds the owner as the
// first member with role "owner".
func (s *Scope) Create(actorID, ownerUserID string, at ids.Timestamp) error {
	if s.Version() != 0 {
		return apperr.New(apperr.CodeDomain, "scope %s already created", s.ID())
	}
	if err := s.Emit(actorID, ScopeCreated{OwnerUserID: ownerUserID}); err != nil {
		return err
	}
	return s.Emit(actorID, ScopeMemberAdded{UserID: ownerUserID, Role: RoleOwner, AddedAt: at})
}

// AddMember adds userID with role at the current epoch. A user cannot
// hold two simultaneously active memberships.
func (s *Scope) AddMember(actorID, userID string, role Role, at ids.Timestamp) error {
	if m, ok := s.Members[userID]; ok && m.Active() {
		return apperr.New(apperr.CodeDomain, "user %s already has an active membership in scope %s", userID, s.ID())
	}
	return s.Emit(actorID, ScopeMemberAdded{UserID: userID, Role: role, AddedAt: at})
}

// RemoveMember flips RemovedAt for userID. The owner can never be removed.
func (s *Scope) RemoveMember(actorID, userID string, at ids.Timestamp) error {
	if userID == s.OwnerUserID {
		return apperr.New(apperr.CodeDomain, "owner %s cannot be removed from scope %s", userID, s.ID())
	}
	m, ok := s.Members[userID]
	if !ok || !m.Active() {
		return apperr.New(apperr.CodeDomain, "user %s has no active membership in scope %s", userID, s.ID())
	}
	return s.Emit(actorID, ScopeMemberRemoved{UserID: userID, RemovedAt: at})
}

// RotateEpoch atomically increments Epoch by one, invalidating grants
// minted under the old epoch for any consumer that checks scope_epoch.
func (s *Scope) RotateEpoch(actorID, reason string) error {
	next := s.Epoch.Next()
	return s.Emit(actorID, ScopeEpochRotated{From: s.Epoch, To: next, Reason: reason})
}

// ApplyEvent is the exhaustive dispatch required by design note 9.1: every
// Scope event tag is handled explicitly, and an unrecognized tag is a
// fatal registry/log drift signal, not a silent no-op.
func (s *Scope) ApplyEvent(payload event.Payload) error {
	switch p := payload.(type) {
	case ScopeCreated:
		s.OwnerUserID = p.OwnerUserID
		s.Epoch = ids.ZeroEpoch
		return nil
	case ScopeMemberAdded:
		s.Members[p.UserID] = Member{UserID: p.UserID, Role: p.Role, AddedAt: p.AddedAt}
		return nil
	case ScopeMemberRemoved:
		m, ok := s.Members[p.UserID]
		if !ok {
			return fmt.Errorf("keyring: ScopeMemberRemoved for unknown member %s", p.UserID)
		}
		m.RemovedAt = event.Some(p.RemovedAt)
		s.Members[p.UserID] = m
		return nil
	case ScopeEpochRotated:
		s.Epoch = p.To
		return nil
	default:
		return &aggregate.ErrInvalidEventForAggregate{AggregateType: ScopeAggregateType, EventType: payload.EventType()}
	}
}

// ScopeCreated sets owner and resets epoch to zero.
type ScopeCreated struct {
	OwnerUserID string
}

func (ScopeCreated) EventType() string { return "ScopeCreated" }
func (p ScopeCreated) Encode() (json.RawMessage, error) {
	owner, err := event.EncodeString(p.OwnerUserID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"ownerUserId": owner})
}

// ScopeMemberAdded records a new or re-added membership.
type ScopeMemberAdded struct {
	UserID  string
	Role    Role
	AddedAt ids.Timestamp
}

func (ScopeMemberAdded) EventType() string { return "ScopeMemberAdded" }
func (p ScopeMemberAdded) Encode() (json.RawMessage, error) {
	userID, err := event.EncodeString(p.UserID)
	if err != nil {
		return nil, err
	}
	role, err := event.EncodeString(string(p.Role))
	if err != nil {
		return nil, err
	}
	addedAt, err := event.EncodeFloat(float64(p.AddedAt))
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"userId": userID, "role": role, "addedAt": addedAt})
}

// ScopeMemberRemoved flips the member's RemovedAt.
type ScopeMemberRemoved struct {
	UserID    string
	RemovedAt ids.Timestamp
}

func (ScopeMemberRemoved) EventType() string { return "ScopeMemberRemoved" }
func (p ScopeMemberRemoved) Encode() (json.RawMessage, error) {
	userID, err := event.EncodeString(p.UserID)
	if err != nil {
		return nil, err
	}
	removedAt, err := event.EncodeFloat(float64(p.RemovedAt))
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"userId": userID, "removedAt": removedAt})
}

// ScopeEpochRotated records one atomic epoch increment.
type ScopeEpochRotated struct {
	From   ids.Epoch
	To     ids.Epoch
	Reason string
}

func (ScopeEpochRotated) EventType() string { return "ScopeEpochRotated" }
func (p ScopeEpochRotated) Encode() (json.RawMessage, error) {
	from, err := event.EncodeString(p.From.String())
	if err != nil {
		return nil, err
	}
	to, err := event.EncodeString(p.To.String())
	if err != nil {
		return nil, err
	}
	reason, err := event.EncodeString(p.Reason)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"from": from, "to": to, "reason": reason})
}
