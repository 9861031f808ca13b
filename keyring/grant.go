package keyring

import (
	"encoding/json"

	"github.com/localfirst/eventcore/aggregate"
	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
)

const ResourceGrantAggregateType = "ResourceGrant"

type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusRevoked GrantStatus = "revoked"
)

// ResourceGrant binds a wrapped resource key to a scope at a specific
// epoch. A grant whose ScopeEpoch has fallen behind the owning scope's
// current epoch is logically invalid to any consumer that checks it, but
// this aggregate itself never cascades that check: revocation is explicit.
type ResourceGrant struct {
	aggregate.Root

	ScopeID       ids.AggregateID
	ResourceID    string
	ScopeEpoch    ids.Epoch
	ResourceKeyID string
	WrappedKey    []byte
	Status        GrantStatus
	GrantedBy     string
	GrantedAt     ids.Timestamp
	RevokedBy     event.Nullable[string]
	RevokedAt     event.Nullable[ids.Timestamp]
}

func NewResourceGrant(id ids.AggregateID) *ResourceGrant {
	g := &ResourceGrant{}
	g.Init(id, ResourceGrantAggregateType, g)
	return g
}

// Grant creates the grant. wrappedKey and resourceKeyID must be non-empty.
func (g *ResourceGrant) Grant(actorID string, scopeID ids.AggregateID, resourceID string, scopeEpoch ids.Epoch, resourceKeyID string, wrappedKey []byte, at ids.Timestamp) error {
	if g.Version() != 0 {
		return apperr.New(apperr.CodeDomain, "grant %s already created", g.ID())
	}
	if resourceKeyID == "" {
		return apperr.New(apperr.CodeValidation, "resourceKeyId must be non-empty")
	}
	if len(wrappedKey) == 0 {
		return apperr.New(apperr.CodeValidation, "wrappedKey must be non-empty")
	}
	return g.Emit(actorID, ResourceGranted{
		ScopeID:       scopeID,
		ResourceID:    resourceID,
		ScopeEpoch:    scopeEpoch,
		ResourceKeyID: resourceKeyID,
		WrappedKey:    wrappedKey,
		GrantedBy:     actorID,
		GrantedAt:     at,
	})
}

// Revoke transitions an active grant to revoked. Revocation is terminal: a
// second revoke attempt against an already-revoked grant is a DomainError
// and leaves RevokedAt unchanged.
func (g *ResourceGrant) Revoke(actorID, reason string, at ids.Timestamp) error {
	if g.Status != GrantStatusActive {
		return apperr.New(apperr.CodeDomain, "grant %s is not active (status=%s)", g.ID(), g.Status)
	}
	return g.Emit(actorID, ResourceRevoked{RevokedBy: actorID, RevokedAt: at, Reason: reason})
}

func (g *ResourceGrant) ApplyEvent(payload event.Payload) error {
	switch p := payload.(type) {
	case ResourceGranted:
		g.ScopeID = p.ScopeID
		g.ResourceID = p.ResourceID
		g.ScopeEpoch = p.ScopeEpoch
		g.ResourceKeyID = p.ResourceKeyID
		g.WrappedKey = p.WrappedKey
		g.Status = GrantStatusActive
		g.GrantedBy = p.GrantedBy
		g.GrantedAt = p.GrantedAt
		return nil
	case ResourceRevoked:
		g.Status = GrantStatusRevoked
		g.RevokedBy = event.Some(p.RevokedBy)
		g.RevokedAt = event.Some(p.RevokedAt)
		return nil
	default:
		return &aggregate.ErrInvalidEventForAggregate{AggregateType: ResourceGrantAggregateType, EventType: payload.EventType()}
	}
}

type ResourceGranted struct {
	ScopeID       ids.AggregateID
	ResourceID    string
	ScopeEpoch    ids.Epoch
	ResourceKeyID string
	WrappedKey    []byte
	GrantedBy     string
	GrantedAt     ids.Timestamp
}

func (ResourceGranted) EventType() string { return "ResourceGranted" }
func (p ResourceGranted) Encode() (json.RawMessage, error) {
	scopeID, err := event.EncodeString(p.ScopeID.String())
	if err != nil {
		return nil, err
	}
	resourceID, err := event.EncodeString(p.ResourceID)
	if err != nil {
		return nil, err
	}
	scopeEpoch, err := event.EncodeString(p.ScopeEpoch.String())
	if err != nil {
		return nil, err
	}
	resourceKeyID, err := event.EncodeString(p.ResourceKeyID)
	if err != nil {
		return nil, err
	}
	wrappedKey, err := event.EncodeBytes(p.WrappedKey)
	if err != nil {
		return nil, err
	}
	grantedBy, err := event.EncodeString(p.GrantedBy)
	if err != nil {
		return nil, err
	}
	grantedAt, err := event.EncodeFloat(float64(p.GrantedAt))
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{
		"scopeId":       scopeID,
		"resourceId":    resourceID,
		"scopeEpoch":    scopeEpoch,
		"resourceKeyId": resourceKeyID,
		"wrappedKey":    wrappedKey,
		"grantedBy":     grantedBy,
		"grantedAt":     grantedAt,
	})
}

type ResourceRevoked struct {
	RevokedBy string
	RevokedAt ids.Timestamp
	Reason    string
}

func (ResourceRevoked) EventType() string { return "ResourceRevoked" }
func (p ResourceRevoked) Encode() (json.RawMessage, error) {
	revokedBy, err := event.EncodeString(p.RevokedBy)
	if err != nil {
		return nil, err
	}
	revokedAt, err := event.EncodeFloat(float64(p.RevokedAt))
	if err != nil {
		return nil, err
	}
	reason, err := event.EncodeString(p.Reason)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"revokedBy": revokedBy, "revokedAt": revokedAt, "reason": reason})
}
