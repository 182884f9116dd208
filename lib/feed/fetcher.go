package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kavrel/chirpwatch/config"
	"github.com/mmcdole/gofeed"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrSourceUnavailable covers unknown handles, provider outages and
// transient network failures alike: the source is skipped this cycle
// and its fingerprint left untouched.
var ErrSourceUnavailable = errors.New("source unavailable")

const fetchTimeout = 15 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, handle string) (*Feed, error)
}

func NewFetcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) Fetcher {
	return &nitterFetcher{
		baseURL:   cfg.NitterBaseURL,
		transport: transport,
		parser:    gofeed.NewParser(),
		log:       log,
	}
}

type nitterFetcher struct {
	baseURL   string
	transport http.RoundTripper
	parser    *gofeed.Parser
	log       *zap.Logger
}

func (f *nitterFetcher) Fetch(ctx context.Context, handle string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/with_replies/rss", f.baseURL, url.PathEscape(handle))

	var body string
	err := requests.URL(endpoint).
		Transport(f.transport).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: @%s: %v", ErrSourceUnavailable, handle, err)
	}

	parsed, err := f.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: @%s: %v", ErrSourceUnavailable, handle, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: @%s: feed has no items", ErrSourceUnavailable, handle)
	}

	return convert(handle, parsed), nil
}

func convert(handle string, parsed *gofeed.Feed) *Feed {
	out := &Feed{
		Handle:      handle,
		DisplayName: parsed.Title,
	}
	if canonical := CanonicalHandle(parsed.Title); canonical != "" {
		out.Handle = canonical
	}
	if parsed.Image != nil {
		out.AvatarURL = parsed.Image.URL
	}

	out.Items = make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := Item{
			Title:     entry.Title,
			Link:      entry.Link,
			Published: entry.Published,
			Kind:      Classify(entry.Title),
		}
		if entry.PublishedParsed != nil {
			item.PublishTime = entry.PublishedParsed.UTC()
		}
		if entry.Author != nil {
			item.Author = entry.Author.Name
		}
		out.Items = append(out.Items, item)
	}
	return out
}
