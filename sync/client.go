package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/telemetry"
)

// Transport is how a Client reaches a Server: over NATS, HTTP, or (for
// tests and the in-process deployment) directly in-process.
type Transport interface {
	Push(PushRequest) (PushResult, error)
	Pull(PullRequest) (PullResult, error)
}

// LocalTransport calls a Server directly, skipping any wire encoding.
// Used by the in-process deployment and by tests that don't need a real
// network hop.
type LocalTransport struct {
	Server *Server
}

func (t LocalTransport) Push(req PushRequest) (PushResult, error) { return t.Server.Push(req) }
func (t LocalTransport) Pull(req PullRequest) (PullResult, error) { return t.Server.Pull(req) }

// LocalLog is the client-side store a Client reconciles against: the
// pending events awaiting push, and the merge point for events pulled
// down from the server.
type LocalLog interface {
	// Pending returns locally committed events not yet acknowledged by the
	// server, in version order, plus the local head (the server sequence
	// this client believes is current).
	Pending() (events []WireEvent, head int64, err error)

	// Acknowledge marks [assignedRange[0], assignedRange[1]] as pushed and
	// advances the local head to assignedRange[1].
	Acknowledge(assignedRange [2]int64) error

	// ApplyPulled merges server-authoritative events into local state and
	// advances the local head to newHead.
	ApplyPulled(events []PulledEvent, newHead int64) error
}

// Client drives the push/rebase loop: push pending events; on a
// server_ahead conflict, pull the events the client is missing, apply
// them, and retry, bounded by a retry budget so a pathological conflict
// storm can't loop forever.
type Client struct {
	storeID     string
	transport   Transport
	local       LocalLog
	retryBudget int
	pullLimit   int

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewClient(storeID string, transport Transport, local LocalLog) *Client {
	return &Client{
		storeID:     storeID,
		transport:   transport,
		local:       local,
		retryBudget: 10,
		pullLimit:   500,
		logger:      slog.Default(),
		metrics:     telemetry.Noop().Metrics,
	}
}

// WithRetryBudget overrides the default rebase retry budget.
func (c *Client) WithRetryBudget(n int) *Client {
	c.retryBudget = n
	return c
}

// WithLogger overrides the Client's *slog.Logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithMetrics attaches OpenTelemetry instruments recording rebase retries.
func (c *Client) WithMetrics(m *telemetry.Metrics) *Client {
	c.metrics = m
	return c
}

// Sync pushes every pending local event, rebasing against server_ahead
// conflicts until the push succeeds, the retry budget is exhausted, or
// there is nothing left to push.
func (c *Client) Sync() error {
	for attempt := 0; ; attempt++ {
		events, head, err := c.local.Pending()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if attempt >= c.retryBudget {
			return apperr.New(apperr.CodeServerAheadConflict, "sync: retry budget exhausted after %d attempts", attempt).
				WithRemediation("pull again and retry sync")
		}

		result, err := c.transport.Push(PushRequest{StoreID: c.storeID, ExpectedHead: head, Events: events})
		if err != nil {
			return err
		}

		if result.Accepted {
			return c.local.Acknowledge(result.AssignedRange)
		}

		switch result.Reason {
		case ReasonServerAhead:
			c.metrics.RebaseRetries.Add(context.Background(), 1)
			c.logger.Debug("sync: rebasing after server_ahead", "storeId", c.storeID, "localHead", head, "serverHead", result.Head, "attempt", attempt)
			if err := c.rebase(head); err != nil {
				return err
			}
			// loop and retry the push against the rebased head.
		case ReasonDuplicateEventID:
			return apperr.New(apperr.CodeDuplicateEventID, "sync: server rejected push for store %s: duplicate event id", c.storeID)
		case ReasonInvalidRecord:
			return apperr.New(apperr.CodeValidation, "sync: server rejected push for store %s: invalid record", c.storeID)
		case ReasonClientAhead:
			return apperr.New(apperr.CodeDbInvalidState, "sync: local head is ahead of server for store %s", c.storeID).
				WithRemediation("reset local state and restore from backup")
		default:
			return fmt.Errorf("sync: push rejected with unknown reason %q", result.Reason)
		}
	}
}

// rebase pulls every event past the local head and merges it in,
// repeating while the server reports more pages.
func (c *Client) rebase(since int64) error {
	for {
		result, err := c.transport.Pull(PullRequest{StoreID: c.storeID, Since: since, Limit: c.pullLimit})
		if err != nil {
			return err
		}
		newHead := result.Head
		if len(result.Events) > 0 {
			newHead = result.Events[len(result.Events)-1].GlobalSequence
		}
		if err := c.local.ApplyPulled(result.Events, newHead); err != nil {
			return err
		}
		if !result.HasMore {
			return nil
		}
		since = *result.NextSince
	}
}
