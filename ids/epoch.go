package ids

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Epoch is a Scope's rotation counter: a non-negative, strictly increasing
// integer with no practical upper bound. It is represented with
// shopspring/decimal (restricted to integral, non-negative values) rather
// than a fixed-width uint64 so that an unbounded number of rotations can
// never silently wrap; on the wire it is always a decimal string.
type Epoch struct {
	d decimal.Decimal
}

// ZeroEpoch is the epoch a freshly created Scope starts at.
var ZeroEpoch = Epoch{d: decimal.Zero}

// NewEpoch constructs an Epoch from a non-negative int64.
func NewEpoch(n int64) (Epoch, error) {
	if n < 0 {
		return Epoch{}, fmt.Errorf("ids: epoch must be non-negative, got %d", n)
	}
	return Epoch{d: decimal.NewFromInt(n)}, nil
}

// ParseEpoch parses a decimal-string wire representation of an epoch.
func ParseEpoch(s string) (Epoch, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Epoch{}, fmt.Errorf("ids: invalid epoch %q: %w", s, err)
	}
	if d.IsNegative() {
		return Epoch{}, fmt.Errorf("ids: epoch must be non-negative, got %s", s)
	}
	if !d.Equal(d.Truncate(0)) {
		return Epoch{}, fmt.Errorf("ids: epoch must be an integer, got %s", s)
	}
	return Epoch{d: d}, nil
}

// Next returns the epoch incremented by one (one rotation).
func (e Epoch) Next() Epoch {
	return Epoch{d: e.d.Add(decimal.NewFromInt(1))}
}

// Before reports whether e < other.
func (e Epoch) Before(other Epoch) bool {
	return e.d.LessThan(other.d)
}

// Equal reports whether e == other.
func (e Epoch) Equal(other Epoch) bool {
	return e.d.Equal(other.d)
}

// String returns the decimal-string wire representation.
func (e Epoch) String() string {
	return e.d.String()
}

// MarshalJSON encodes the epoch as a decimal string so it survives
// JSON without precision loss.
func (e Epoch) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.d.String())
}

// UnmarshalJSON decodes an epoch from its decimal-string wire form.
func (e *Epoch) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEpoch(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
