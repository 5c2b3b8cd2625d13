package resilience

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultClassifier(t *testing.T) {
	c := DefaultClassifier{}

	tests := []struct {
		name    string
		outcome Outcome
		want    FailureReason
	}{
		{"deadline exceeded", Outcome{Err: context.DeadlineExceeded}, ReasonTimeout},
		{"canceled", Outcome{Err: context.Canceled}, ReasonCanceled},
		{"connection refused", Outcome{Err: syscall.ECONNREFUSED}, ReasonConnectionError},
		{"connection reset", Outcome{Err: syscall.ECONNRESET}, ReasonConnectionError},
		{"eof", Outcome{Err: io.EOF}, ReasonConnectionError},
		{"dns failure", Outcome{Err: &net.DNSError{Err: "no such host"}}, ReasonConnectionError},
		{"net timeout", Outcome{Err: &net.OpError{Op: "dial", Err: timeoutErr{}}}, ReasonTimeout},
		{"wrapped timeout", Outcome{Err: errors.Join(errors.New("request"), context.DeadlineExceeded)}, ReasonTimeout},
		{"typed error kind", Outcome{Err: &fs.PathError{Op: "open", Path: "x", Err: errors.New("boom")}}, FailureReason("patherror")},
		{"plain error", Outcome{Err: errors.New("boom")}, ReasonUnknown},
		{"500", Outcome{Status: 500}, Reason5xx},
		{"503", Outcome{Status: 503}, Reason5xx},
		{"429", Outcome{Status: 429}, ReasonRateLimit},
		{"404", Outcome{Status: 404}, FailureReason("status_404")},
		{"400", Outcome{Status: 400}, FailureReason("status_400")},
		{"app error code", Outcome{AppErrorCode: "E1042"}, FailureReason("app_error_E1042")},
		{"nothing recognizable", Outcome{}, ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.outcome))
		})
	}
}

func TestClassifierErrorWinsOverStatus(t *testing.T) {
	// A raised error takes precedence over any status that happened to be
	// recorded alongside it.
	c := DefaultClassifier{}
	got := c.Classify(Outcome{Err: context.DeadlineExceeded, Status: 500})
	assert.Equal(t, ReasonTimeout, got)
}

func TestTransientSet(t *testing.T) {
	assert.True(t, ReasonTimeout.Transient())
	assert.True(t, ReasonConnectionError.Transient())
	assert.True(t, Reason5xx.Transient())
	assert.True(t, ReasonRateLimit.Transient())
	assert.False(t, ReasonCanceled.Transient())
	assert.False(t, ReasonUnknown.Transient())
	assert.False(t, StatusReason(404).Transient())
	assert.False(t, AppErrorReason("E1").Transient())
}

func TestOutcomeOK(t *testing.T) {
	assert.True(t, Outcome{}.OK())
	assert.True(t, Outcome{Status: 200}.OK())
	assert.True(t, Outcome{Status: 204}.OK())
	assert.False(t, Outcome{Status: 500}.OK())
	assert.False(t, Outcome{Status: 404}.OK())
	assert.False(t, Outcome{Err: io.EOF}.OK())
	assert.False(t, Outcome{AppErrorCode: "E1"}.OK())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
