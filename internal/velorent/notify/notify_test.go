package notify

import (
	"context"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewMailer(t *testing.T) {
	_, ok := NewMailer(config.SMTPConfig{}, zap.NewNop()).(*LogMailer)
	assert.True(t, ok)

	m, ok := NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 465, Username: "robot@example.com", UseSSL: true}, zap.NewNop()).(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "robot@example.com", m.from)
	assert.True(t, m.dialer.SSL)
}

func TestLogMailerDoesNotLogBody(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	_, body := PasswordResetMessage("012345")

	err := NewLogMailer(zap.New(core)).Send(context.Background(), "a@example.com", "subject", body)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	for _, v := range logs.All()[0].ContextMap() {
		assert.NotContains(t, v, "012345")
	}
}

func TestPasswordResetMessage(t *testing.T) {
	subject, body := PasswordResetMessage("004211")
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "004211")
}

func TestNoThrottle(t *testing.T) {
	ok, wait, err := NoThrottle{}.Allow(context.Background(), "a@example.com")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, wait)
}

func TestRedisThrottleUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ok, _, err := NewRedisThrottle(rdb, time.Minute).Allow(context.Background(), "a@example.com")
	assert.Error(t, err)
	assert.False(t, ok)
}
