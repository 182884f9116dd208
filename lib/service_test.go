package lib

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kavrel/chirpwatch/config"
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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Guild{}, &models.Channel{}, &models.Source{}, &models.Subscription{}))
	return db
}

func aliceFeed() *feed.Feed {
	published := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &feed.Feed{
		Handle:      "alice",
		DisplayName: "Alice Doe / @alice",
		AvatarURL:   "https://nitter.example.com/pic/alice.jpg",
		Items: []feed.Item{{
			Title:       "hello world",
			Link:        "https://twitter.com/alice/status/1000",
			Published:   published.Format(time.RFC1123),
			PublishTime: published,
		}},
	}
}

func newTestService(db *gorm.DB, fetcher feed.Fetcher, sender senders.Sender) *Service {
	log := zap.NewNop()
	return &Service{
		log:        log,
		db:         db,
		fetcher:    fetcher,
		renderer:   render.NewRenderer(&config.Config{EmbedHost: "vxtwitter.com"}),
		dispatcher: dispatch.NewDispatcher(nil, log, senders.Registry{"discord": sender}),
	}
}

func TestSubscribe(t *testing.T) {
	db := newTestDB(t)
	alice := aliceFeed()
	svc := newTestService(db, &fakeFetcher{feeds: map[string]*feed.Feed{"alice": alice}}, &fakeSender{})

	msg, err := svc.Subscribe(context.Background(), "alice", "chan-1", "guild-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "now subscribed to ``@alice``")

	var src models.Source
	require.NoError(t, db.First(&src, "handle = ?", "alice").Error)
	assert.Equal(t, feed.Fingerprint(alice.Items[0]), src.LastFingerprint.String,
		"fingerprint seeded so the next cycle does not back-flood")

	var channel models.Channel
	require.NoError(t, db.First(&channel, "id = ?", "chan-1").Error)
	assert.Equal(t, "guild-1", channel.GuildID)
	assert.False(t, channel.HasWebhook(), "webhook is provisioned lazily on first delivery")

	msg, err = svc.Subscribe(context.Background(), "alice", "chan-1", "guild-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "already an ongoing subscription")
}

func TestSubscribeUnknownHandle(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db, &fakeFetcher{feeds: map[string]*feed.Feed{}}, &fakeSender{})

	msg, err := svc.Subscribe(context.Background(), "nobody", "chan-1", "guild-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "No account found")

	var count int64
	db.Model(&models.Source{}).Count(&count)
	assert.Zero(t, count)
}

func TestUnsubscribe(t *testing.T) {
	db := newTestDB(t)
	alice := aliceFeed()
	svc := newTestService(db, &fakeFetcher{feeds: map[string]*feed.Feed{"alice": alice}}, &fakeSender{})

	_, err := svc.Subscribe(context.Background(), "alice", "chan-1", "guild-1")
	require.NoError(t, err)

	msg, err := svc.Unsubscribe(context.Background(), "bob", "chan-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "was not in the list")

	msg, err = svc.Unsubscribe(context.Background(), "alice", "chan-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "Successfully unsubscribed")

	handles, err := svc.ListSubscriptions(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestUnsubscribeAll(t *testing.T) {
	db := newTestDB(t)
	alice := aliceFeed()
	bob := aliceFeed()
	bob.Handle = "bob"
	svc := newTestService(db, &fakeFetcher{feeds: map[string]*feed.Feed{"alice": alice, "bob": bob}}, &fakeSender{})

	_, err := svc.Subscribe(context.Background(), "alice", "chan-1", "guild-1")
	require.NoError(t, err)
	_, err = svc.Subscribe(context.Background(), "bob", "chan-1", "guild-1")
	require.NoError(t, err)

	handles, err := svc.ListSubscriptions(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, handles)

	msg, err := svc.UnsubscribeAll(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "removed all active subscriptions")

	msg, err = svc.UnsubscribeAll(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "no active subscriptions")
}

func TestPreviewLatest(t *testing.T) {
	db := newTestDB(t)
	alice := aliceFeed()
	sender := &fakeSender{}
	svc := newTestService(db, &fakeFetcher{feeds: map[string]*feed.Feed{"alice": alice}}, sender)

	msg, err := svc.PreviewLatest(context.Background(), "alice", "chan-1", "guild-1")
	require.NoError(t, err)
	assert.Contains(t, msg, "Fetched latest post from Alice Doe / @alice")
	assert.Equal(t, 1, sender.sends)

	var channel models.Channel
	require.NoError(t, db.First(&channel, "id = ?", "chan-1").Error)
	assert.True(t, channel.HasWebhook(), "first delivery provisioned a webhook")
}
