package resilience

import "fmt"

// FailureReason is the canonical tag describing why an attempt failed.
// The same tag drives both the retry decision and the metrics label, so
// the two can never disagree.
type FailureReason string

const (
	ReasonTimeout         FailureReason = "timeout"
	ReasonConnectionError FailureReason = "connection_error"
	Reason5xx             FailureReason = "5xx"
	ReasonRateLimit       FailureReason = "rate_limit"
	ReasonCanceled        FailureReason = "canceled"
	ReasonUnknown         FailureReason = "unknown"
)

// StatusReason builds the reason for a non-5xx, non-429 HTTP-style status.
func StatusReason(code int) FailureReason {
	return FailureReason(fmt.Sprintf("status_%d", code))
}

// AppErrorReason builds the reason for a structured application error code.
func AppErrorReason(code string) FailureReason {
	return FailureReason("app_error_" + code)
}

// Transient reports whether the reason belongs to the retryable set:
// timeouts, connection failures, 5xx responses and rate limiting.
func (r FailureReason) Transient() bool {
	switch r {
	case ReasonTimeout, ReasonConnectionError, Reason5xx, ReasonRateLimit:
		return true
	default:
		return false
	}
}

func (r FailureReason) String() string {
	return string(r)
}
