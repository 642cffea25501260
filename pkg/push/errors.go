package push

import "errors"

var (
	// ErrConfiguration marks fatal setup problems. They are never per-endpoint failures.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingRegion is returned when no AWS region is configured.
	ErrMissingRegion = configError("region is required (set AWS_DEFAULT_REGION)")
	// ErrUnknownProvider is returned for a provider name with no composer.
	ErrUnknownProvider = configError("unknown provider")
	// ErrInvalidTTL is returned for a time_to_live option that is not a non-negative whole number.
	ErrInvalidTTL = configError("invalid time_to_live")

	// ErrTransport wraps any failure reported by the notification transport.
	ErrTransport = errors.New("transport failure")
	// ErrEndpointDisabled means the transport refused the endpoint as disabled.
	ErrEndpointDisabled = transportError("endpoint disabled")

	// ErrPersistence wraps audit write failures. It is logged, never returned to callers.
	ErrPersistence = errors.New("persistence failure")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func configError(msg string) error    { return &kindError{msg: msg, kind: ErrConfiguration} }
func transportError(msg string) error { return &kindError{msg: msg, kind: ErrTransport} }
