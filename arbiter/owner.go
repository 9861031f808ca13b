package arbiter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/telemetry"
)

// Handler dispatches one Request's payload to the owner's underlying
// store and returns the encoded result data. Unknown payload kinds must
// return an apperr with CodeWorkerProtocol; the Owner does not interpret
// payload shapes itself, only guarantees single-owner dispatch.
type Handler func(req Request) (data []byte, err error)

type registration struct {
	storeID string
	dbName  string
}

// Owner arbitrates a single process-local database among many client
// endpoints: it enforces one (store_id, db_name) pair per client
// instance, dispatches requests through Handler, and honors pre-dispatch
// cancellation. It holds no lock while Handler runs, so concurrent
// HandleRequest calls reach Handler concurrently.
type Owner struct {
	serverInstanceID string
	mode             OwnershipMode
	handle           Handler

	mu         sync.Mutex
	registered map[string]registration // client_instance_id -> (store_id, db_name)
	cancelled  map[string]struct{}     // request_id pre-cancelled before dispatch
	inFlight   map[string]struct{}     // request_id currently dispatching

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// OwnerOption configures an Owner at construction time.
type OwnerOption func(*Owner)

// WithOwnerLogger overrides the Owner's *slog.Logger.
func WithOwnerLogger(logger *slog.Logger) OwnerOption {
	return func(o *Owner) { o.logger = logger }
}

// WithOwnerMetrics attaches OpenTelemetry instruments recording Hello,
// dispatch, and cancellation counts.
func WithOwnerMetrics(m *telemetry.Metrics) OwnerOption {
	return func(o *Owner) { o.metrics = m }
}

// NewOwner constructs an Owner with the given server identity, ownership
// mode, and operation Handler.
func NewOwner(serverInstanceID string, mode OwnershipMode, handle Handler, opts ...OwnerOption) *Owner {
	o := &Owner{
		serverInstanceID: serverInstanceID,
		mode:             mode,
		handle:           handle,
		registered:       make(map[string]registration),
		cancelled:        make(map[string]struct{}),
		inFlight:         make(map[string]struct{}),
		logger:           slog.Default(),
		metrics:          telemetry.Noop().Metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleHello registers clientInstanceID's (store_id, db_name) pair on
// first contact; a later Hello from the same client instance naming a
// different pair is an ownership violation.
func (o *Owner) HandleHello(h Hello) (*HelloOk, *HelloError) {
	o.metrics.HelloTotal.Add(context.Background(), 1)

	if h.V != ProtocolVersion {
		return nil, &HelloError{V: ProtocolVersion, Error: "unsupported protocol version"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	reg, seen := o.registered[h.ClientInstanceID]
	if !seen {
		o.registered[h.ClientInstanceID] = registration{storeID: h.StoreID, dbName: h.DBName}
	} else if reg.storeID != h.StoreID || reg.dbName != h.DBName {
		o.metrics.OwnershipViolations.Add(context.Background(), 1)
		o.logger.Warn("arbiter: ownership violation", "clientInstanceId", h.ClientInstanceID, "storeId", reg.storeID, "dbName", reg.dbName)
		return nil, &HelloError{V: ProtocolVersion, Error: apperr.New(apperr.CodeDbOwnership,
			"client instance %s already owns (%s, %s)", h.ClientInstanceID, reg.storeID, reg.dbName).Error()}
	}

	return &HelloOk{
		V:                ProtocolVersion,
		ProtocolVersion:  ProtocolVersion,
		OwnershipMode:    o.mode,
		ServerInstanceID: o.serverInstanceID,
	}, nil
}

// Cancel marks targetRequestID for cancellation. If it has not yet begun
// dispatch, the next HandleRequest call for it returns CanceledError
// without invoking Handler; if it is already in flight, Cancel has no
// effect (the transaction runs to completion).
func (o *Owner) Cancel(targetRequestID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.inFlight[targetRequestID]; running {
		return
	}
	o.cancelled[targetRequestID] = struct{}{}
}

// HandleRequest dispatches req.Payload through Handler and wraps the
// result (or error) as a Response. Pre-cancelled requests short-circuit
// with CanceledError and are never passed to Handler.
func (o *Owner) HandleRequest(req Request) Response {
	o.mu.Lock()
	if _, wasCancelled := o.cancelled[req.RequestID]; wasCancelled {
		delete(o.cancelled, req.RequestID)
		o.mu.Unlock()
		o.metrics.RequestsCancelled.Add(context.Background(), 1)
		return errorResponse(req.RequestID, apperr.New(apperr.CodeCanceled, "request %s was cancelled before dispatch", req.RequestID))
	}
	o.inFlight[req.RequestID] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, req.RequestID)
		o.mu.Unlock()
	}()

	o.metrics.RequestsDispatched.Add(context.Background(), 1)
	data, err := o.handle(req)
	if err != nil {
		o.logger.Debug("arbiter: request dispatch failed", "requestId", req.RequestID, "error", err)
		return errorResponse(req.RequestID, err)
	}
	return Response{V: ProtocolVersion, RequestID: req.RequestID, Data: data}
}

func errorResponse(requestID string, err error) Response {
	code, ok := apperr.AsCode(err)
	if !ok {
		code = apperr.CodeWorkerProtocol
	}
	var details map[string]string
	var remediation string
	if ae, ok := err.(*apperr.Error); ok {
		details = ae.Details
		remediation = ae.Remediation
	}
	return Response{
		V:         ProtocolVersion,
		RequestID: requestID,
		Error: &ResponseError{
			Code:        string(code),
			Message:     err.Error(),
			Details:     details,
			Remediation: remediation,
		},
	}
}
