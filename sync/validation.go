package sync

import (
	"github.com/asaskevich/govalidator"

	"github.com/localfirst/eventcore/apperr"
)

// maxRecordJSONBytes bounds a single event's wire body; the owner never
// produces anything close to this, so hitting it means a malformed or
// hostile caller, not a legitimate large event.
const maxRecordJSONBytes = "10485760"

// ValidatePushRequest rejects a PushRequest whose shape could never be
// satisfied by the backend, before it reaches the sequence-assignment
// logic: a blank store_id, a negative expectedHead, or an event with a
// blank id or an empty/oversized record body.
func ValidatePushRequest(req PushRequest) error {
	if !govalidator.StringLength(req.StoreID, "1", "256") {
		return apperr.New(apperr.CodeValidation, "push: storeId must be non-empty")
	}
	if req.ExpectedHead < 0 {
		return apperr.New(apperr.CodeValidation, "push: expectedHead must be non-negative, got %d", req.ExpectedHead)
	}
	if len(req.Events) == 0 {
		return apperr.New(apperr.CodeValidation, "push: events must be non-empty")
	}
	for _, e := range req.Events {
		if !govalidator.StringLength(e.EventID, "1", "256") {
			return apperr.New(apperr.CodeValidation, "push: event has a blank eventId")
		}
		if !govalidator.StringLength(e.RecordJSON, "1", maxRecordJSONBytes) {
			return apperr.New(apperr.CodeValidation, "push: event %s has an empty or oversized recordJson", e.EventID)
		}
	}
	return nil
}

// ValidatePullRequest rejects a PullRequest with a blank store_id or a
// negative since cursor.
func ValidatePullRequest(req PullRequest) error {
	if !govalidator.StringLength(req.StoreID, "1", "256") {
		return apperr.New(apperr.CodeValidation, "pull: storeId must be non-empty")
	}
	if req.Since < 0 {
		return apperr.New(apperr.CodeValidation, "pull: since must be non-negative, got %d", req.Since)
	}
	return nil
}
