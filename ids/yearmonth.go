package ids

import (
	"encoding/json"
	"fmt"
	"time"
)

// YearMonth is a totally ordered (year, month) value used by snapshot
// retention policies and sync batching cadences. It marshals as "YYYY-MM".
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the YearMonth containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Before reports whether ym precedes other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// MarshalJSON encodes the value as a "YYYY-MM" JSON string.
func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(ym.String())
}

// UnmarshalJSON decodes a "YYYY-MM" JSON string.
func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var y, m int
	if _, err := fmt.Sscanf(s, "%04d-%02d", &y, &m); err != nil {
		return fmt.Errorf("ids: invalid year-month %q: %w", s, err)
	}
	if m < 1 || m > 12 {
		return fmt.Errorf("ids: invalid month in %q", s)
	}
	ym.Year = y
	ym.Month = time.Month(m)
	return nil
}
