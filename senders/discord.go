package senders

import (
	"context"
	"errors"
	"fmt"

	"github.com/kavrel/chirpwatch/discord"
	"github.com/kavrel/chirpwatch/lib/models"
)

const webhookName = "chirpwatch"

type discordSender struct {
	base
	client *discord.Client
}

func (s *discordSender) Send(ctx context.Context, endpointID, endpointSecret string, item models.RenderedItem) error {
	err := s.client.Execute(ctx, endpointID, endpointSecret, discord.ExecutePayload{
		Content:   item.Content,
		Username:  item.DisplayName,
		AvatarURL: item.AvatarURL,
	})
	if errors.Is(err, discord.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrEndpointGone, err)
	}
	return err
}

func (s *discordSender) CreateEndpoint(ctx context.Context, channelID string) (string, string, error) {
	webhook, err := s.client.CreateWebhook(ctx, channelID, webhookName)
	if err != nil {
		return "", "", err
	}
	s.log.Sugar().Infof("New webhook created for channel %s", channelID)
	return webhook.ID, webhook.Token, nil
}
