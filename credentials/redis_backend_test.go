package credentials_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/pcexpress-session/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backend := credentials.NewRedisBackend(client, "cli", 7*24*time.Hour)
	store := credentials.NewStore(backend, credentials.WithLogger(zerolog.Nop()))

	require.True(t, store.Save("abc123", "refresh"))
	token, ok := store.Token()
	require.True(t, ok)
	require.Equal(t, "abc123", token)
	require.Equal(t, 7*24*time.Hour, mr.TTL("credentials:cli:pcexpress_TOKEN"))

	t.Run("entries expire with the cookie max age", func(t *testing.T) {
		mr.FastForward(7*24*time.Hour + time.Second)
		_, ok := store.Token()
		require.False(t, ok)
	})

	t.Run("unavailable redis degrades to no session", func(t *testing.T) {
		require.True(t, store.Save("abc123", ""))
		mr.Close()
		_, ok := store.Token()
		require.False(t, ok)
		require.False(t, store.TouchActivity())
	})
}
