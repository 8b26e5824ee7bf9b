package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, 0, 0, nil)
	require.Equal(t, defaultMaxRetries, m.maxRetries)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Minute},
		{attempt: 1, want: time.Minute},
		{attempt: 2, want: 2 * time.Minute},
		{attempt: 3, want: 4 * time.Minute},
		{attempt: 6, want: 32 * time.Minute},
		{attempt: 7, want: time.Hour},
		{attempt: 64, want: time.Hour},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, m.backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffDelayCustomBase(t *testing.T) {
	m := NewDLQManager(nil, 3, 10*time.Second, nil)
	require.Equal(t, 3, m.maxRetries)
	require.Equal(t, 40*time.Second, m.backoffDelay(3))
}
