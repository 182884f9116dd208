package senders

import (
	"context"
	"errors"

	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/discord"
	"github.com/kavrel/chirpwatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrEndpointGone means the stored endpoint credential was revoked or
// deleted upstream. Callers recover by creating a fresh endpoint.
var ErrEndpointGone = errors.New("delivery endpoint gone")

// Sender delivers rendered items through a platform's channel
// endpoints and can provision new endpoint credentials.
type Sender interface {
	Send(ctx context.Context, endpointID, endpointSecret string, item models.RenderedItem) error
	CreateEndpoint(ctx context.Context, channelID string) (endpointID, endpointSecret string, err error)
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, client *discord.Client) Registry {
	base := base{log, cfg}
	return Registry{
		"discord": &discordSender{base, client},
	}
}

type base struct {
	log *zap.Logger
	cfg *config.Config
}
