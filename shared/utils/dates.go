package utils

import "time"

const dateLayout = "2006-01-02"

// ParseDateBound parses a query parameter holding an RFC 3339 timestamp or a
// plain date, in UTC. A plain date given as an upper bound covers the whole
// day, up to its last microsecond.
func ParseDateBound(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, nil
}
