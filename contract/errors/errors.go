package errors

// Error codes for the event service contracts. Keep stable; used across adapters,
// the locator and the resolver.
const (
	ErrCodeConfiguration        = "eventservice.configuration"
	ErrCodePatternCompilation   = "eventservice.pattern_compilation"
	ErrCodeServiceInstantiation = "eventservice.service_instantiation"
	ErrCodeServiceExists        = "eventservice.service_exists"
	ErrCodeServiceNotFound      = "eventservice.service_not_found"
	ErrCodeServiceClosed        = "eventservice.service_closed"
	ErrCodeHandlerTypeMismatch  = "eventservice.handler_type_mismatch"
	ErrCodeTargetReleased       = "eventservice.target_released"
	ErrCodeForwardFailed        = "eventservice.forward_failed"
	ErrCodeSerializationFailed  = "eventservice.serialization_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	// ErrConfiguration reports a malformed or missing declaration field. It is a caller bug.
	ErrConfiguration = Code(ErrCodeConfiguration)
	// ErrPatternCompilation reports a topic pattern that is not a valid regular expression.
	ErrPatternCompilation = Code(ErrCodePatternCompilation)
	// ErrServiceInstantiation reports that an auto-created event service could not be constructed.
	ErrServiceInstantiation = Code(ErrCodeServiceInstantiation)
	// ErrServiceExists is returned by Register when the name is already taken.
	ErrServiceExists       = Code(ErrCodeServiceExists)
	ErrServiceNotFound     = Code(ErrCodeServiceNotFound)
	ErrServiceClosed       = Code(ErrCodeServiceClosed)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	// ErrTargetReleased is returned when a borrowed subscriber's owner has been released.
	// Services treat it as "unsubscribe and continue".
	ErrTargetReleased      = Code(ErrCodeTargetReleased)
	ErrForwardFailed       = Code(ErrCodeForwardFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
)
