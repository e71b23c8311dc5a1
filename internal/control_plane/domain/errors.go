package domain

import "fmt"

// NotFoundError signals that a requested form, record or webhook identity
// does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthorizationError is terminal for the request that triggered it. The
// message is kept generic on signature mismatches so it leaks nothing about
// the expected MAC.
type AuthorizationError struct {
	Message string
	Err     error
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal and non-retryable, such as a schema left with
// zero fields after truncation or an unusable webhook secret.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// MappingError reports that a single upstream field or answer type could not
// be converted. It is always consumed at the mapping site: the offending
// column or record is dropped and the overall fetch still succeeds.
type MappingError struct {
	ExternalType string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("no mapping for external type %q", e.ExternalType)
}

// ExternalServiceError reports a non-2xx status or an unparseable body from
// an upstream service. Callers may retry.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
