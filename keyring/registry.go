package keyring

import (
	"encoding/json"

	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
)

// RegisterPayloads installs decoders for every Scope and ResourceGrant
// event tag into reg. Callers do this once at startup, typically against
// event.Global.
func RegisterPayloads(reg *event.Registry) {
	reg.Register("ScopeCreated", decodeScopeCreated)
	reg.Register("ScopeMemberAdded", decodeScopeMemberAdded)
	reg.Register("ScopeMemberRemoved", decodeScopeMemberRemoved)
	reg.Register("ScopeEpochRotated", decodeScopeEpochRotated)
	reg.Register("ResourceGranted", decodeResourceGranted)
	reg.Register("ResourceRevoked", decodeResourceRevoked)
}

func decodeScopeCreated(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	ownerRaw, err := event.RequireField(obj, "ownerUserId")
	if err != nil {
		return nil, err
	}
	owner, err := event.DecodeString(ownerRaw)
	if err != nil {
		return nil, err
	}
	return ScopeCreated{OwnerUserID: owner}, nil
}

func decodeScopeMemberAdded(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	userRaw, err := event.RequireField(obj, "userId")
	if err != nil {
		return nil, err
	}
	userID, err := event.DecodeString(userRaw)
	if err != nil {
		return nil, err
	}
	roleRaw, err := event.RequireField(obj, "role")
	if err != nil {
		return nil, err
	}
	role, err := event.DecodeString(roleRaw)
	if err != nil {
		return nil, err
	}
	addedAtRaw, err := event.RequireField(obj, "addedAt")
	if err != nil {
		return nil, err
	}
	addedAt, err := event.DecodeFloat(addedAtRaw)
	if err != nil {
		return nil, err
	}
	return ScopeMemberAdded{UserID: userID, Role: Role(role), AddedAt: ids.Timestamp(addedAt)}, nil
}

func decodeScopeMemberRemoved(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	userRaw, err := event.RequireField(obj, "userId")
	if err != nil {
		return nil, err
	}
	userID, err := event.DecodeString(userRaw)
	if err != nil {
		return nil, err
	}
	removedAtRaw, err := event.RequireField(obj, "removedAt")
	if err != nil {
		return nil, err
	}
	removedAt, err := event.DecodeFloat(removedAtRaw)
	if err != nil {
		return nil, err
	}
	return ScopeMemberRemoved{UserID: userID, RemovedAt: ids.Timestamp(removedAt)}, nil
}

func decodeScopeEpochRotated(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	fromRaw, err := event.RequireField(obj, "from")
	if err != nil {
		return nil, err
	}
	fromStr, err := event.DecodeString(fromRaw)
	if err != nil {
		return nil, err
	}
	from, err := ids.ParseEpoch(fromStr)
	if err != nil {
		return nil, err
	}
	toRaw, err := event.RequireField(obj, "to")
	if err != nil {
		return nil, err
	}
	toStr, err := event.DecodeString(toRaw)
	if err != nil {
		return nil, err
	}
	to, err := ids.ParseEpoch(toStr)
	if err != nil {
		return nil, err
	}
	reasonRaw, err := event.RequireField(obj, "reason")
	if err != nil {
		return nil, err
	}
	reason, err := event.DecodeString(reasonRaw)
	if err != nil {
		return nil, err
	}
	return ScopeEpochRotated{From: from, To: to, Reason: reason}, nil
}

func decodeResourceGranted(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	scopeIDRaw, err := event.RequireField(obj, "scopeId")
	if err != nil {
		return nil, err
	}
	scopeIDStr, err := event.DecodeString(scopeIDRaw)
	if err != nil {
		return nil, err
	}
	scopeID, err := ids.ParseAggregateID(scopeIDStr)
	if err != nil {
		return nil, err
	}
	resourceIDRaw, err := event.RequireField(obj, "resourceId")
	if err != nil {
		return nil, err
	}
	resourceID, err := event.DecodeString(resourceIDRaw)
	if err != nil {
		return nil, err
	}
	scopeEpochRaw, err := event.RequireField(obj, "scopeEpoch")
	if err != nil {
		return nil, err
	}
	scopeEpochStr, err := event.DecodeString(scopeEpochRaw)
	if err != nil {
		return nil, err
	}
	scopeEpoch, err := ids.ParseEpoch(scopeEpochStr)
	if err != nil {
		return nil, err
	}
	resourceKeyIDRaw, err := event.RequireField(obj, "resourceKeyId")
	if err != nil {
		return nil, err
	}
	resourceKeyID, err := event.DecodeString(resourceKeyIDRaw)
	if err != nil {
		return nil, err
	}
	wrappedKeyRaw, err := event.RequireField(obj, "wrappedKey")
	if err != nil {
		return nil, err
	}
	wrappedKey, err := event.DecodeBytes(wrappedKeyRaw)
	if err != nil {
		return nil, err
	}
	grantedByRaw, err := event.RequireField(obj, "grantedBy")
	if err != nil {
		return nil, err
	}
	grantedBy, err := event.DecodeString(grantedByRaw)
	if err != nil {
		return nil, err
	}
	grantedAtRaw, err := event.RequireField(obj, "grantedAt")
	if err != nil {
		return nil, err
	}
	grantedAt, err := event.DecodeFloat(grantedAtRaw)
	if err != nil {
		return nil, err
	}
	return ResourceGranted{
		ScopeID:       scopeID,
		ResourceID:    resourceID,
		ScopeEpoch:    scopeEpoch,
		ResourceKeyID: resourceKeyID,
		WrappedKey:    wrappedKey,
		GrantedBy:     grantedBy,
		GrantedAt:     ids.Timestamp(grantedAt),
	}, nil
}

func decodeResourceRevoked(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	revokedByRaw, err := event.RequireField(obj, "revokedBy")
	if err != nil {
		return nil, err
	}
	revokedBy, err := event.DecodeString(revokedByRaw)
	if err != nil {
		return nil, err
	}
	revokedAtRaw, err := event.RequireField(obj, "revokedAt")
	if err != nil {
		return nil, err
	}
	revokedAt, err := event.DecodeFloat(revokedAtRaw)
	if err != nil {
		return nil, err
	}
	reasonRaw, err := event.RequireField(obj, "reason")
	if err != nil {
		return nil, err
	}
	reason, err := event.DecodeString(reasonRaw)
	if err != nil {
		return nil, err
	}
	return ResourceRevoked{RevokedBy: revokedBy, RevokedAt: ids.Timestamp(revokedAt), Reason: reason}, nil
}
