// Package sync implements the push/pull protocol between a client store
// and a server that assigns a global linear sequence across all events a
// store's owner has ever written, plus the client-side rebase loop that
// reconciles a local head against server-ahead conflicts.
package sync

// WireEvent is one event as carried over the sync boundary: the body
// travels opaquely as RecordJSON (already produced by event.ToRecord and
// marshaled), so the sync layer never needs to decode payloads. The
// sharing-ref fields are optional and only populated for events whose
// payload is wrapped under a scope/grant; the server never inspects them,
// it only stores and echoes them back on Pull so a client can filter its
// rebase without decoding every RecordJSON body.
type WireEvent struct {
	EventID    string `json:"eventId"`
	RecordJSON string `json:"recordJson"`

	ScopeID        string `json:"scopeId,omitempty"`
	ResourceID     string `json:"resourceId,omitempty"`
	ResourceKeyID  string `json:"resourceKeyId,omitempty"`
	GrantID        string `json:"grantId,omitempty"`
	ScopeStateRef  string `json:"scopeStateRef,omitempty"`
	AuthorDeviceID string `json:"authorDeviceId,omitempty"`
}

// PushRequest is one push call: expectedHead must equal the server's
// current head for storeID or the push is rejected as a conflict.
type PushRequest struct {
	StoreID      string      `json:"storeId"`
	ExpectedHead int64       `json:"expectedHead"`
	Events       []WireEvent `json:"events"`
}

// ConflictReason enumerates why a push was rejected.
type ConflictReason string

const (
	ReasonServerAhead      ConflictReason = "server_ahead"
	ReasonClientAhead      ConflictReason = "client_ahead"
	ReasonDuplicateEventID ConflictReason = "duplicate_event_id"
	ReasonInvalidRecord    ConflictReason = "invalid_record"
)

// PushResult is either Accepted (AssignedRange set) or a Conflict
// (Reason/Head set); exactly one of the two halves is populated.
type PushResult struct {
	Accepted      bool           `json:"accepted"`
	AssignedRange [2]int64       `json:"assignedRange,omitempty"`
	Reason        ConflictReason `json:"reason,omitempty"`
	Head          int64          `json:"head,omitempty"`
}

// PullRequest asks for events strictly after Since, at most Limit.
type PullRequest struct {
	StoreID string `json:"storeId"`
	Since   int64  `json:"since"`
	Limit   int    `json:"limit"`
}

// PulledEvent is one event as returned by Pull, carrying its assigned
// global sequence alongside the opaque record body and the same optional
// sharing-ref fields accepted on push.
type PulledEvent struct {
	GlobalSequence int64  `json:"globalSequence"`
	EventID        string `json:"eventId"`
	RecordJSON     string `json:"recordJson"`

	ScopeID        string `json:"scopeId,omitempty"`
	ResourceID     string `json:"resourceId,omitempty"`
	ResourceKeyID  string `json:"resourceKeyId,omitempty"`
	GrantID        string `json:"grantId,omitempty"`
	ScopeStateRef  string `json:"scopeStateRef,omitempty"`
	AuthorDeviceID string `json:"authorDeviceId,omitempty"`
}

// PullResult is the paged response to a Pull call.
type PullResult struct {
	Events    []PulledEvent `json:"events"`
	Head      int64         `json:"head"`
	HasMore   bool          `json:"hasMore"`
	NextSince *int64        `json:"nextSince"`
}
