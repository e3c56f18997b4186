package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client)
	ctx := context.Background()
	key := "ratelimit:checkout:user:u-1"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	assert.True(t, limiter.Allow(ctx, key, 2, time.Minute))
	assert.True(t, limiter.Allow(ctx, key, 2, time.Minute))
	assert.False(t, limiter.Allow(ctx, key, 2, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client)

	mock.ExpectIncr("k").SetErr(errors.New("connection refused"))

	assert.True(t, limiter.Allow(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (X11; Linux x86_64)", false},
		{"Googlebot/2.1", true},
		{"AcmeCrawler", true},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.ua, func(t *testing.T) {
			assert.Equal(t, tc.want, isSuspiciousUserAgent(tc.ua))
		})
	}
}
