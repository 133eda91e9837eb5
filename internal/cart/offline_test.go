package cart

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"storefront/internal/api"
	"storefront/internal/offline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outageBackend serves the cart until it is taken down.
type outageBackend struct {
	down  atomic.Bool
	clear atomic.Int32
}

func (b *outageBackend) RoundTrip(req *http.Request) (*http.Response, error) {
	if b.down.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	switch {
	case req.Method == http.MethodGet && req.URL.Path == "/api/cart":
		if b.clear.Load() > 0 {
			return reply(http.StatusOK, `{"items":[]}`), nil
		}
		return reply(http.StatusOK, `{"items":[{"variantId":"v1","size":"9","qty":2,"price":150000}]}`), nil
	case req.Method == http.MethodDelete && req.URL.Path == "/api/cart/clear":
		b.clear.Add(1)
		b.down.Store(true)
		return reply(http.StatusOK, `{"success":true}`), nil
	}
	return reply(http.StatusNotFound, `{"error":"not found"}`), nil
}

func TestStore_ThroughOfflineCache(t *testing.T) {
	ctx := context.Background()
	b := &outageBackend{}
	tr, err := offline.NewTransport(b, offline.Options{})
	require.NoError(t, err)
	client, err := api.NewClient("https://shop.example.com/api", api.WithTransport(tr))
	require.NoError(t, err)

	s := NewStore(NewRepository(client), loggedIn("u1"))
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 2, s.Count())

	// the backend drops right after the clear succeeds
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Count())
	assert.ErrorIs(t, s.Err(), api.ErrNetwork)

	err = s.Load(ctx)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.ErrorIs(t, s.Err(), api.ErrNetwork)
	assert.Equal(t, 0, s.Count())
	assert.Zero(t, tr.Len())
}
