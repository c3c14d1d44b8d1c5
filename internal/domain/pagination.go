package domain

// DefaultLimit is the page size applied when none is specified.
const DefaultLimit = 100

// MaxLimit is the maximum allowed page size.
const MaxLimit = 1000

// PageRequest holds limit/offset pagination parameters for list operations.
type PageRequest struct {
	MaxResults int
	Skip       int
}

// Limit returns the effective page size, clamped to [1, MaxLimit].
func (p PageRequest) Limit() int {
	if p.MaxResults <= 0 {
		return DefaultLimit
	}
	if p.MaxResults > MaxLimit {
		return MaxLimit
	}
	return p.MaxResults
}

// Offset returns the effective offset, never negative.
func (p PageRequest) Offset() int {
	if p.Skip < 0 {
		return 0
	}
	return p.Skip
}
