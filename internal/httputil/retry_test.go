// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy uses a tiny base delay so tests finish quickly.
var testPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestPolicyDo_ImmediateSuccess(t *testing.T) {
	calls := 0
	err := testPolicy.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyDo_TransientThenSuccess(t *testing.T) {
	calls := 0
	err := testPolicy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicyDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := &net.OpError{Op: "read", Err: errors.New("timeout")}
	err := testPolicy.Do(context.Background(), func() error {
		calls++
		return transient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, transient)
}

func TestPolicyDo_PermanentErrorFailsFast(t *testing.T) {
	calls := 0
	permanent := &StatusError{StatusCode: http.StatusBadRequest, Body: "bad query"}
	err := testPolicy.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "bad query", se.Body)
}

func TestPolicyDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- slow.Do(ctx, func() error {
			calls++
			return fmt.Errorf("flaky: %w", context.DeadlineExceeded)
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not observe cancellation")
	}
}

func TestPolicyDo_CustomRetryablePredicate(t *testing.T) {
	sentinel := errors.New("try harder")
	p := Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, sentinel) },
	}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestNewStatusError_AttachesBodyFor4xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"folder not allowed"}`)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	se := NewStatusError(resp)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.Body, "folder not allowed")
	assert.Contains(t, se.Error(), "403")
}

func TestNewStatusError_NoBodyFor5xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream sad")
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	se := NewStatusError(resp)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Empty(t, se.Body)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"503", &StatusError{StatusCode: http.StatusServiceUnavailable}, true},
		{"404", &StatusError{StatusCode: http.StatusNotFound}, false},
		{"400", &StatusError{StatusCode: http.StatusBadRequest}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"dns error", &net.DNSError{Err: "no such host", Name: "api.invalid"}, true},
		{"plain error", errors.New("decode failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
