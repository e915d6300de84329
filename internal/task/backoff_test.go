package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    float64
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{
			name:    "first retry",
			base:    2,
			attempt: 1,
			max:     60 * time.Second,
			want:    2 * time.Second,
		},
		{
			name:    "exponential growth",
			base:    2,
			attempt: 4,
			max:     60 * time.Second,
			want:    16 * time.Second,
		},
		{
			name:    "capped at max",
			base:    2,
			attempt: 6,
			max:     60 * time.Second,
			want:    60 * time.Second,
		},
		{
			name:    "fractional base",
			base:    1.5,
			attempt: 2,
			max:     60 * time.Second,
			want:    2250 * time.Millisecond,
		},
		{
			name:    "overflowing attempt saturates at max",
			base:    2,
			attempt: 500,
			max:     60 * time.Second,
			want:    60 * time.Second,
		},
		{
			name:    "zero attempt",
			base:    2,
			attempt: 0,
			max:     60 * time.Second,
			want:    0,
		},
		{
			name:    "zero base",
			base:    0,
			attempt: 3,
			max:     60 * time.Second,
			want:    0,
		},
		{
			name:    "zero max",
			base:    2,
			attempt: 3,
			max:     0,
			want:    0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BackoffDelay(tt.base, tt.attempt, tt.max))
		})
	}
}
