// Package core carries the ambient goerrors text codes used by the
// command layer, trimmed from the teacher's much larger
// service-error taxonomy down to what this module's domain actually
// raises.
package core

// Service text codes, following the teacher's core/errors.go
// SERVICE_* naming so goerrors.Error.TextCode stays machine-stable
// across releases.
const (
	ServiceErrorBadInput        = "SERVICE_BAD_INPUT"
	ServiceErrorNotFound        = "SERVICE_NOT_FOUND"
	ServiceErrorUnauthorized    = "SERVICE_UNAUTHORIZED"
	ServiceErrorForbidden       = "SERVICE_FORBIDDEN"
	ServiceErrorConflict        = "SERVICE_CONFLICT"
	ServiceErrorOperationFailed = "SERVICE_OPERATION_FAILED"
	ServiceErrorRateLimited     = "SERVICE_RATE_LIMITED"
	ServiceErrorInternal        = "SERVICE_INTERNAL_ERROR"
)
