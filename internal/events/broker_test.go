package events

import (
	"io"
	"net"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/gateway-go/internal/model"
	redisclient "github.com/wirechat/gateway-go/internal/redis"
)

// silentRedis accepts connections and swallows every byte without replying,
// so any command sent over it blocks until its deadline.
func silentRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = io.Copy(io.Discard, c)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestNotifyReturnsImmediatelyOnSlowRedis(t *testing.T) {
	addr := silentRedis(t)
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{Addr: addr})}
	broker := NewBroker(client)

	// Both notifiers run from session event loops and must never wait on
	// the publish round trip.
	start := time.Now()
	broker.NotifyState("org-1", model.ConnectionStateOpen)
	broker.NotifyPairing("org-1", []byte("2@pairing-blob"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
