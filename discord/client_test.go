package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		baseURL:   baseURL,
		token:     "test-token",
		transport: http.DefaultTransport,
		log:       zap.NewNop(),
	}
}

func TestExecuteMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Execute(context.Background(), "wh-1", "secret-1", ExecutePayload{Content: "hi"})

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExecuteSendsPayload(t *testing.T) {
	var got ExecutePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	payload := ExecutePayload{Content: "hi", Username: "Alice", AvatarURL: "https://example.com/a.jpg"}
	err := newTestClient(srv.URL).Execute(context.Background(), "wh-1", "secret-1", payload)

	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCreateWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/chan-1/webhooks", r.URL.Path)
		assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Webhook{ID: "wh-9", Token: "secret-9"})
	}))
	defer srv.Close()

	webhook, err := newTestClient(srv.URL).CreateWebhook(context.Background(), "chan-1", "chirpwatch")

	require.NoError(t, err)
	assert.Equal(t, &Webhook{ID: "wh-9", Token: "secret-9"}, webhook)
}

func TestGuildsPaginates(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		out := make([]Guild, 0, guildPageSize)
		if pages == 1 {
			for i := 0; i < guildPageSize; i++ {
				out = append(out, Guild{ID: "g1"})
			}
		} else {
			assert.Equal(t, "g1", r.URL.Query().Get("after"))
			out = append(out, Guild{ID: "g2"})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	guilds, err := newTestClient(srv.URL).Guilds(context.Background())

	require.NoError(t, err)
	assert.Len(t, guilds, guildPageSize+1)
	assert.Equal(t, 2, pages)
}
