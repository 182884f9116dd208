package lib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kavrel/chirpwatch/lib/dispatch"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/models"
	"github.com/kavrel/chirpwatch/lib/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service implements the operator-facing subscription operations. The
// returned strings are human-readable results; expected user-level
// failures (unknown handle, duplicate subscription) come back as
// messages, not errors.
type Service struct {
	log        *zap.Logger
	db         *gorm.DB
	fetcher    feed.Fetcher
	renderer   *render.Renderer
	dispatcher *dispatch.Dispatcher
}

func NewService(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB, fetcher feed.Fetcher, renderer *render.Renderer, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{log, db, fetcher, renderer, dispatcher}
}

// Subscribe validates the handle against the live feed, canonicalizes
// it, and creates the source, guild, channel and subscription rows as
// needed. The source's fingerprint is seeded with the current newest
// item so a fresh subscription never back-floods the channel.
func (svc *Service) Subscribe(ctx context.Context, handle, channelID, guildID string) (string, error) {
	fetched, err := svc.fetcher.Fetch(ctx, handle)
	if err != nil {
		svc.log.Sugar().Infow("Subscribe rejected, source unavailable", "handle", handle, "err", err)
		return fmt.Sprintf("No account found for ``@%s``. Please check and try again", handle), nil
	}
	handle = fetched.Handle

	var count int64
	tx := svc.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("source_handle = ? AND channel_id = ?", handle, channelID).
		Count(&count)
	if err := tx.Error; err != nil {
		return "", err
	}
	if count > 0 {
		return fmt.Sprintf("There is already an ongoing subscription for ``@%s`` in <#%s>", handle, channelID), nil
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source := models.Source{
			Handle:          handle,
			LastFingerprint: sql.NullString{String: feed.Fingerprint(fetched.Items[0]), Valid: true},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&source).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Guild{ID: guildID}).Error; err != nil {
			return err
		}
		channel := models.Channel{ID: channelID, GuildID: guildID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&channel).Error; err != nil {
			return err
		}
		sub := models.Subscription{SourceHandle: handle, ChannelID: channelID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error
	})
	if err != nil {
		return "", err
	}

	svc.log.Sugar().Infof("Channel %s subscribed to @%s", channelID, handle)
	return fmt.Sprintf("<#%s> is now subscribed to ``@%s``.", channelID, handle), nil
}

// Unsubscribe removes one subscription from the channel.
func (svc *Service) Unsubscribe(ctx context.Context, handle, channelID string) (string, error) {
	tx := svc.db.WithContext(ctx).
		Delete(&models.Subscription{}, "source_handle = ? AND channel_id = ?", handle, channelID)
	if err := tx.Error; err != nil {
		return "", err
	}
	if tx.RowsAffected == 0 {
		return fmt.Sprintf("``@%s`` was not in the list of subscriptions for <#%s>", handle, channelID), nil
	}

	svc.log.Sugar().Infof("Channel %s unsubscribed from @%s", channelID, handle)
	return fmt.Sprintf("Successfully unsubscribed from ``@%s``", handle), nil
}

// UnsubscribeAll bulk-removes every subscription in the channel.
func (svc *Service) UnsubscribeAll(ctx context.Context, channelID string) (string, error) {
	tx := svc.db.WithContext(ctx).Delete(&models.Subscription{}, "channel_id = ?", channelID)
	if err := tx.Error; err != nil {
		return "", err
	}
	if tx.RowsAffected == 0 {
		return fmt.Sprintf("<#%s> has no active subscriptions.", channelID), nil
	}

	svc.log.Sugar().Infof("Channel %s unsubscribed from all sources", channelID)
	return fmt.Sprintf("Successfully removed all active subscriptions in <#%s>", channelID), nil
}

// ListSubscriptions returns the handles the channel is subscribed to.
func (svc *Service) ListSubscriptions(ctx context.Context, channelID string) ([]string, error) {
	var handles []string
	tx := svc.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("channel_id = ?", channelID).
		Order("source_handle").
		Pluck("source_handle", &handles)
	return handles, tx.Error
}

// PreviewLatest fetches the source's newest item and delivers it to
// the channel immediately, outside the polling cycle. The channel row
// is created on first use.
func (svc *Service) PreviewLatest(ctx context.Context, handle, channelID, guildID string) (string, error) {
	fetched, err := svc.fetcher.Fetch(ctx, handle)
	if err != nil {
		return fmt.Sprintf("No posts found for ``@%s``.\nSite error or invalid handle", handle), nil
	}

	db := svc.db.WithContext(ctx)

	var channel models.Channel
	err = db.First(&channel, "id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Guild{ID: guildID}).Error; err != nil {
			return "", err
		}
		channel = models.Channel{ID: channelID, GuildID: guildID}
		if err := db.Create(&channel).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	rendered := svc.renderer.Render(fetched, fetched.Items[0])
	result := svc.dispatcher.Deliver(ctx, db, &channel, rendered)
	if result.Err != nil {
		svc.log.Sugar().Warnw("Preview delivery failed", "handle", handle, "channel", channelID, "err", result.Err)
		return "", result.Err
	}

	return fmt.Sprintf("Fetched latest post from %s", fetched.DisplayName), nil
}
