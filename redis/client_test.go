package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, Ping(context.Background(), client, time.Second))
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(Config{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	}, nil)
	assert.Error(t, err, "ping 失败应该在构造时报错")
}
