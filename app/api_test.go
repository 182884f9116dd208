package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/lib"
	"github.com/kavrel/chirpwatch/lib/dispatch"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/models"
	"github.com/kavrel/chirpwatch/lib/render"
	"github.com/kavrel/chirpwatch/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeFetcher struct {
	feeds map[string]*feed.Feed
}

func (f *fakeFetcher) Fetch(ctx context.Context, handle string) (*feed.Feed, error) {
	if fetched, ok := f.feeds[handle]; ok {
		return fetched, nil
	}
	return nil, fmt.Errorf("%w: @%s", feed.ErrSourceUnavailable, handle)
}

type fakeSender struct {
	sends int
}

func (f *fakeSender) Send(ctx context.Context, endpointID, endpointSecret string, item models.RenderedItem) error {
	f.sends++
	return nil
}

func (f *fakeSender) CreateEndpoint(ctx context.Context, channelID string) (string, string, error) {
	return "wh-1", "secret-1", nil
}

func aliceFeed() *feed.Feed {
	published := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &feed.Feed{
		Handle:      "alice",
		DisplayName: "Alice Doe / @alice",
		Items: []feed.Item{{
			Title:       "hello world",
			Link:        "https://twitter.com/alice/status/1000",
			Published:   published.Format(time.RFC1123),
			PublishTime: published,
		}},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Guild{}, &models.Channel{}, &models.Source{}, &models.Subscription{}))

	log := zap.NewNop()
	fetcher := &fakeFetcher{feeds: map[string]*feed.Feed{"alice": aliceFeed()}}
	dispatcher := dispatch.NewDispatcher(nil, log, senders.Registry{"discord": &fakeSender{}})
	renderer := render.NewRenderer(&config.Config{EmbedHost: "vxtwitter.com"})
	svc := lib.NewService(nil, log, db, fetcher, renderer, dispatcher)

	return router(&config.Config{}, log, svc)
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeRequiresGuildID(t *testing.T) {
	r := newTestRouter(t)

	rec := postForm(t, r, "/api/channels/chan-1/subscriptions", url.Values{"handle": {"alice"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "guild_id is required")
}

func TestPreviewRequiresGuildID(t *testing.T) {
	r := newTestRouter(t)

	rec := postForm(t, r, "/api/channels/chan-1/preview", url.Values{"handle": {"alice"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "guild_id is required")
}

func TestPreviewDeliversLatest(t *testing.T) {
	r := newTestRouter(t)

	rec := postForm(t, r, "/api/channels/chan-1/preview", url.Values{
		"handle":   {"alice"},
		"guild_id": {"guild-1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fetched latest post from Alice Doe / @alice")
}
