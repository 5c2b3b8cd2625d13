package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// Outcome is the result of a single attempt, as reported by the attempt
// function. Exactly one of the failure fields is expected to be meaningful:
// Err for raised errors, Status for HTTP-style status codes, AppErrorCode
// for structured application errors carried inside an otherwise valid
// response.
type Outcome struct {
	Err          error
	Status       int
	AppErrorCode string

	Attempt int
	Elapsed time.Duration
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.AppErrorCode == "" && (o.Status == 0 || o.Status < 400)
}

// Classifier maps a raw attempt outcome to a canonical FailureReason.
// Implementations must be deterministic and side-effect free.
type Classifier interface {
	Classify(o Outcome) FailureReason
}

// ClassifierFunc adapts a plain function into a Classifier.
type ClassifierFunc func(o Outcome) FailureReason

func (f ClassifierFunc) Classify(o Outcome) FailureReason { return f(o) }

// DefaultClassifier implements the standard classification policy: errors
// are classified by kind, status codes by range, and structured application
// errors by their code.
type DefaultClassifier struct{}

func (DefaultClassifier) Classify(o Outcome) FailureReason {
	if o.Err != nil {
		return classifyError(o.Err)
	}
	if o.Status != 0 {
		switch {
		case o.Status >= 500:
			return Reason5xx
		case o.Status == 429:
			return ReasonRateLimit
		default:
			return StatusReason(o.Status)
		}
	}
	if o.AppErrorCode != "" {
		return AppErrorReason(o.AppErrorCode)
	}
	return ReasonUnknown
}

func classifyError(err error) FailureReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ReasonConnectionError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonConnectionError
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonConnectionError
	}

	return FailureReason(errorKind(err))
}

// errorKind derives a stable lower-cased tag from the error's concrete type,
// e.g. *fs.PathError becomes "patherror". Plain errors.New values map to
// "unknown" rather than leaking "errorstring".
func errorKind(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	if name == "errorstring" || name == "wraperror" || name == "" {
		return string(ReasonUnknown)
	}
	return name
}
