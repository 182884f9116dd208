// Package discord is a minimal REST client for the delivery platform:
// webhook execution, webhook creation, and the membership/identity
// reads the rest of the system needs.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kavrel/chirpwatch/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the platform reports the target gone,
// e.g. a webhook that was deleted upstream.
var ErrNotFound = errors.New("discord: not found")

const (
	requestTimeout = 10 * time.Second
	guildPageSize  = 200
)

type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Webhook struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type ExecutePayload struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Client struct {
	baseURL   string
	token     string
	transport http.RoundTripper
	log       *zap.Logger
}

func NewClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Client {
	return &Client{
		baseURL:   cfg.DiscordAPIBase,
		token:     cfg.BotToken,
		transport: transport,
		log:       log,
	}
}

func (c *Client) api(path string) *requests.Builder {
	return requests.URL(c.baseURL + path).
		Header("Authorization", "Bot "+c.token).
		Transport(c.transport)
}

// Me probes the identity endpoint; a nil error means the platform is
// reachable and the token is accepted.
func (c *Client) Me(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var me struct {
		ID string `json:"id"`
	}
	return c.api("/users/@me").ToJSON(&me).Fetch(ctx)
}

// Guilds lists every guild the bot currently belongs to.
func (c *Client) Guilds(ctx context.Context) ([]Guild, error) {
	var all []Guild
	after := ""
	for {
		builder := c.api("/users/@me/guilds").
			Param("limit", fmt.Sprint(guildPageSize))
		if after != "" {
			builder = builder.Param("after", after)
		}

		pageCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		var page []Guild
		err := builder.ToJSON(&page).Fetch(pageCtx)
		cancel()
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < guildPageSize {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

// CreateWebhook provisions a fresh webhook credential in the channel.
func (c *Client) CreateWebhook(ctx context.Context, channelID, name string) (*Webhook, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var webhook Webhook
	err := c.api("/channels/"+channelID+"/webhooks").
		BodyJSON(map[string]string{"name": name}).
		ToJSON(&webhook).
		Fetch(ctx)
	if err != nil {
		return nil, c.wrapNotFound(err)
	}
	return &webhook, nil
}

// Execute posts a message through a webhook, impersonating the given
// username and avatar.
func (c *Client) Execute(ctx context.Context, webhookID, webhookToken string, payload ExecutePayload) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	err := requests.URL(c.baseURL+"/webhooks/"+webhookID+"/"+webhookToken).
		Transport(c.transport).
		BodyJSON(&payload).
		Fetch(ctx)
	return c.wrapNotFound(err)
}

func (c *Client) wrapNotFound(err error) error {
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
