package conversation

import "errors"

// Lookup errors. None of them is fatal: the operation that hit one leaves the tree untouched.
var (
	ErrNotLoaded           = errors.New("conversation not loaded")
	ErrBlockNotFound       = errors.New("message block not found")
	ErrNoCollapsible       = errors.New("message block has no collapsible content")
	ErrSpacerNotFound      = errors.New("spacer not found")
	ErrPlaceholderNotFound = errors.New("super-collapsed block not found")
	ErrRegionNotFound      = errors.New("content region not found")
	ErrToggleNotFound      = errors.New("quoted text toggle not found")
	ErrEmptyFragment       = errors.New("markup has no element to insert")
)

// IsLookupMiss reports whether err means a target was not found and nothing was changed.
// Hosts may race commands against content replacement, so these are expected.
func IsLookupMiss(err error) bool {
	return errors.Is(err, ErrBlockNotFound) ||
		errors.Is(err, ErrNoCollapsible) ||
		errors.Is(err, ErrSpacerNotFound) ||
		errors.Is(err, ErrPlaceholderNotFound) ||
		errors.Is(err, ErrRegionNotFound) ||
		errors.Is(err, ErrToggleNotFound) ||
		errors.Is(err, ErrEmptyFragment)
}
