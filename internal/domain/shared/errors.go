package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound         = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput     = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState     = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnauthorized     = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrAlreadyRunning   = NewDomainError("ALREADY_RUNNING", "A run of this kind is already in progress")
	ErrUpstreamFailure  = NewDomainError("UPSTREAM_FAILURE", "Upstream system call failed")
	ErrStorageFailure   = NewDomainError("STORAGE_FAILURE", "Persistent storage operation failed")
	ErrLockContention   = NewDomainError("LOCK_CONTENTION", "Could not acquire exclusive access in time")
	ErrSchedulerStopped = NewDomainError("SCHEDULER_STOPPED", "Scheduler is not running")
)
