package pinnedhttp

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	cause := syscall.ECONNREFUSED
	err := fmt.Errorf("wrapped: %w", newError(KindConnectionFailed, "dial", cause))

	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.NotErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Equal(t, KindConnectionFailed, KindOf(err))
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "given op and cause, then all parts are included",
			err:  newError(KindIO, "read", errors.New("reset")),
			want: "pinnedhttp: read: i/o error: reset",
		},
		{
			name: "given sentinel, then only kind",
			err:  ErrCancelled,
			want: "pinnedhttp: cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindCancelled, KindOf(newError(KindCancelled, "read", context.Canceled)))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil, then empty", err: nil, want: ""},
		{name: "given invalid target, then invalid_target", err: newError(KindInvalidTarget, "encode", errors.New("x")), want: ErrorTypeInvalidTarget},
		{name: "given interface unavailable, then interface_unavailable", err: newError(KindInterfaceUnavailable, "select", errors.New("x")), want: ErrorTypeInterfaceUnavailable},
		{name: "given cancelled, then cancelled", err: newError(KindCancelled, "read", context.Canceled), want: ErrorTypeCancelled},
		{name: "given deadline, then timeout", err: newError(KindIO, "read", context.DeadlineExceeded), want: ErrorTypeTimeout},
		{name: "given refused, then connection_refused", err: newError(KindConnectionFailed, "dial", syscall.ECONNREFUSED), want: ErrorTypeConnectionRefused},
		{name: "given reset, then connection_reset", err: newError(KindIO, "read", syscall.ECONNRESET), want: ErrorTypeConnectionReset},
		{name: "given too large, then response_too_large", err: newError(KindIO, "read", ErrResponseTooLarge), want: ErrorTypeTooLarge},
		{name: "given unknown, then unknown", err: errors.New("mystery"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}
