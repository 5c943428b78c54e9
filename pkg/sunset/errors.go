package sunset

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrEndpointNotFound indicates no endpoint with the given slug exists
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrParamNotFound indicates a documented parameter was not found
	ErrParamNotFound = errors.New("endpoint parameter not found")

	// ErrAlternativeNotFound indicates no migration path exists between the endpoints
	ErrAlternativeNotFound = errors.New("endpoint alternative not found")

	// ErrInvalidPolicy indicates the deprecation policy constants are unusable
	ErrInvalidPolicy = errors.New("invalid deprecation policy")

	// ErrInvalidSlugOrder indicates an unsupported pagination order
	ErrInvalidSlugOrder = errors.New("order must be one of 'asc', 'desc'")

	// ErrInvalidLimit indicates a non-positive pagination limit
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidParamLocation indicates an unsupported parameter location
	ErrInvalidParamLocation = errors.New("location must be one of 'query', 'header', 'body'")

	// ErrNotDeprecated indicates an operation that requires a deprecated endpoint
	ErrNotDeprecated = errors.New("endpoint is not deprecated")
)

// EndpointError represents an error related to one endpoint's evaluation or
// catalog operations
type EndpointError struct {
	Slug string
	Op   string
	Err  error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint operation %s failed for slug %q: %v", e.Op, e.Slug, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}
