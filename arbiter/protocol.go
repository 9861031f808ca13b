// Package arbiter implements the owner arbitration protocol: the
// handshake, request/response, cancellation, and notification envelopes
// that let many client endpoints (browser tabs, processes) share one
// owner instance of the local log store.
package arbiter

import "encoding/json"

// ProtocolVersion is the only accepted value of every envelope's V field.
const ProtocolVersion = 1

// OwnershipMode describes how the owner's write lease is held.
type OwnershipMode string

const (
	// ModeSharedOwner: one process hosts the owner and multiplexes many
	// client endpoints. Preferred.
	ModeSharedOwner OwnershipMode = "shared-owner"
	// ModeDedicatedOwner: a single client endpoint holds an exclusive,
	// named, process-level mutex keyed by store identifier; fallback
	// when the shared transport is unavailable.
	ModeDedicatedOwner OwnershipMode = "dedicated-owner"
	// ModeInProcess: a single process owns the database directly; no
	// other arbiters exist.
	ModeInProcess OwnershipMode = "in-process"
)

// Hello is the initial handshake from a client endpoint.
type Hello struct {
	V                     int    `json:"v"`
	StoreID               string `json:"storeId"`
	ClientInstanceID      string `json:"clientInstanceId"`
	DBName                string `json:"dbName"`
	RequirePrivateStorage bool   `json:"requirePrivateStorage"`
}

// HelloOk is the owner's successful handshake reply.
type HelloOk struct {
	V                int           `json:"v"`
	ProtocolVersion   int           `json:"protocolVersion"`
	OwnershipMode     OwnershipMode `json:"ownershipMode"`
	ServerInstanceID  string        `json:"serverInstanceId"`
}

// HelloError is the owner's rejecting handshake reply.
type HelloError struct {
	V     int    `json:"v"`
	Error string `json:"error"`
}

// Request carries one operation payload, keyed by RequestID so its
// eventual Response (or a Cancel) can be correlated.
type Request struct {
	V         int             `json:"v"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// Response answers a Request, carrying either Data or Error (never both).
type Response struct {
	V         int             `json:"v"`
	RequestID string          `json:"requestId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the typed-error shape carried in a failing Response,
// mirroring apperr.Error's Code/Message/Details/Remediation fields.
type ResponseError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Details     map[string]string `json:"details,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
}

// Cancel asks the owner to drop a pending, not-yet-started request.
// Cancellation is advisory: an already-dispatched request runs to
// completion regardless.
type Cancel struct {
	V               int    `json:"v"`
	RequestID       string `json:"requestId"`
	TargetRequestID string `json:"targetRequestId"`
}

// NotifyKind enumerates unsolicited publication kinds.
type NotifyKind string

const NotifyTablesChanged NotifyKind = "TablesChanged"

// Notify is an unsolicited publication to subscribers, currently only
// ever a TablesChanged notice.
type Notify struct {
	V      int        `json:"v"`
	Kind   NotifyKind `json:"kind"`
	Tables []string   `json:"tables"`
}
