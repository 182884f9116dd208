// Package render converts feed items into channel-ready notification
// messages. Rendering is pure: no I/O, no persisted state.
package render

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/models"
)

type Renderer struct {
	embedHost string
}

func NewRenderer(cfg *config.Config) *Renderer {
	return &Renderer{embedHost: cfg.EmbedHost}
}

func (r *Renderer) Render(src *feed.Feed, item feed.Item) models.RenderedItem {
	return models.RenderedItem{
		Content:      r.message(src.DisplayName, item),
		DisplayName:  src.DisplayName,
		AvatarURL:    src.AvatarURL,
		SourceHandle: src.Handle,
	}
}

func (r *Renderer) message(displayName string, item feed.Item) string {
	link := r.rewriteLink(item.Link)

	switch item.Kind {
	case feed.KindReshare:
		return fmt.Sprintf("``%s`` retweeted ``%s``\n%s", handleWord(displayName), item.Author, link)

	case feed.KindReply:
		return fmt.Sprintf("``%s`` replied to ``%s`` on %s\n%s",
			handleWord(displayName), replyTarget(item.Title), timestampTag(item.PublishTime), link)

	default:
		return fmt.Sprintf("``%s`` tweeted on %s\n%s", displayName, timestampTag(item.PublishTime), link)
	}
}

// rewriteLink substitutes the embed-friendly host for the original
// content host, leaving every other URL component unchanged.
func (r *Renderer) rewriteLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	u.Host = r.embedHost
	return u.String()
}

// handleWord is the "@handle" trailer of a display name like
// "Alice Doe / @alice".
func handleWord(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return displayName
	}
	return fields[len(fields)-1]
}

// replyTarget extracts "@someone" from a title like "R to @someone: ...".
func replyTarget(title string) string {
	fields := strings.Fields(title)
	if len(fields) < 3 {
		return ""
	}
	return strings.TrimSuffix(fields[2], ":")
}

// timestampTag renders a Discord-native timestamp marker.
func timestampTag(t time.Time) string {
	return fmt.Sprintf("<t:%d>", t.Unix())
}
