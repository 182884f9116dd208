// Package reconcile prunes persisted records that no longer have any
// live backing: guilds the bot has left, and sources or channels with
// no remaining subscriptions.
package reconcile

import (
	"context"

	"github.com/kavrel/chirpwatch/discord"
	"github.com/kavrel/chirpwatch/lib/models"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Counts struct {
	GuildsRemoved   int64
	ChannelsRemoved int64
	SourcesRemoved  int64
}

// GuildLister is the live-membership read the pass depends on.
type GuildLister interface {
	Guilds(ctx context.Context) ([]discord.Guild, error)
}

type Reconciler struct {
	log    *zap.Logger
	db     *gorm.DB
	guilds GuildLister
}

func NewReconciler(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB, client *discord.Client) *Reconciler {
	return &Reconciler{log: log, db: db, guilds: client}
}

// Run executes one reconciliation pass. It must complete before the
// first update cycle so stale rows never reach the poll fan-out.
func (r *Reconciler) Run(ctx context.Context) (Counts, error) {
	var counts Counts

	live, err := r.guilds.Guilds(ctx)
	if err != nil {
		return counts, err
	}
	liveIDs := lo.Map(live, func(g discord.Guild, _ int) string { return g.ID })

	db := r.db.WithContext(ctx)

	counts.GuildsRemoved = r.pruneGuilds(db, liveIDs)
	counts.ChannelsRemoved = r.pruneChannels(db)
	counts.SourcesRemoved = r.pruneSources(db)

	r.log.Sugar().Infow("Reconciliation complete",
		"guilds_removed", counts.GuildsRemoved,
		"channels_removed", counts.ChannelsRemoved,
		"sources_removed", counts.SourcesRemoved,
	)
	return counts, nil
}

func (r *Reconciler) pruneGuilds(db *gorm.DB, liveIDs []string) int64 {
	var tx *gorm.DB
	if len(liveIDs) == 0 {
		tx = db.Where("1 = 1").Delete(&models.Guild{})
	} else {
		tx = db.Delete(&models.Guild{}, "id NOT IN ?", liveIDs)
	}
	if err := tx.Error; err != nil {
		r.log.Sugar().Errorw("Failed to prune guilds", "err", err)
		return 0
	}
	return tx.RowsAffected
}

// pruneChannels removes channels orphaned by a pruned guild along with
// their subscriptions, then channels with no subscriptions left.
func (r *Reconciler) pruneChannels(db *gorm.DB) int64 {
	orphaned := db.Model(&models.Channel{}).
		Select("id").
		Where("guild_id NOT IN (?)", db.Model(&models.Guild{}).Select("id"))

	tx := db.Delete(&models.Subscription{}, "channel_id IN (?)", orphaned)
	if err := tx.Error; err != nil {
		r.log.Sugar().Errorw("Failed to prune orphaned subscriptions", "err", err)
		return 0
	}

	var removed int64
	tx = db.Delete(&models.Channel{}, "guild_id NOT IN (?)", db.Model(&models.Guild{}).Select("id"))
	if err := tx.Error; err != nil {
		r.log.Sugar().Errorw("Failed to prune orphaned channels", "err", err)
	} else {
		removed += tx.RowsAffected
	}

	tx = db.Delete(&models.Channel{}, "id NOT IN (?)", db.Model(&models.Subscription{}).Select("channel_id"))
	if err := tx.Error; err != nil {
		r.log.Sugar().Errorw("Failed to prune subscription-less channels", "err", err)
	} else {
		removed += tx.RowsAffected
	}
	return removed
}

func (r *Reconciler) pruneSources(db *gorm.DB) int64 {
	tx := db.Delete(&models.Source{}, "handle NOT IN (?)", db.Model(&models.Subscription{}).Select("source_handle"))
	if err := tx.Error; err != nil {
		r.log.Sugar().Errorw("Failed to prune sources", "err", err)
		return 0
	}
	return tx.RowsAffected
}
