// Package dispatch sends rendered items to channel delivery endpoints,
// recreating a stale endpoint credential and retrying the send exactly
// once when the platform reports it gone.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/kavrel/chirpwatch/lib/models"
	"github.com/kavrel/chirpwatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const platform = "discord"

type Status int

const (
	StatusDelivered Status = iota
	StatusRecovered // delivered after recreating the endpoint
	StatusFailed
)

// Result is the per-message outcome; failures are reported, never
// retried beyond the single post-recovery attempt, and never block
// delivery to other channels.
type Result struct {
	Status Status
	Err    error
}

type Dispatcher struct {
	log     *zap.Logger
	senders senders.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(lc fx.Lifecycle, log *zap.Logger, reg senders.Registry) *Dispatcher {
	return &Dispatcher{
		log:     log,
		senders: reg,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Deliver sends one rendered item to one channel using the supplied
// session. The channel's credential pair is provisioned on first use
// and rotated once if the platform reports it gone.
func (d *Dispatcher) Deliver(ctx context.Context, db *gorm.DB, channel *models.Channel, item models.RenderedItem) Result {
	sender, ok := d.senders[platform]
	if !ok {
		return Result{StatusFailed, fmt.Errorf("unsupported delivery platform: %s", platform)}
	}

	if !channel.HasWebhook() {
		if err := d.rotateEndpoint(ctx, db, sender, channel, ""); err != nil {
			return Result{StatusFailed, err}
		}
	}

	err := sender.Send(ctx, channel.WebhookID.String, channel.WebhookToken.String, item)
	if err == nil {
		return Result{StatusDelivered, nil}
	}
	if !errors.Is(err, senders.ErrEndpointGone) {
		return Result{StatusFailed, err}
	}

	staleID := channel.WebhookID.String
	if err := d.rotateEndpoint(ctx, db, sender, channel, staleID); err != nil {
		return Result{StatusFailed, err}
	}
	if err := sender.Send(ctx, channel.WebhookID.String, channel.WebhookToken.String, item); err != nil {
		return Result{StatusFailed, err}
	}
	return Result{StatusRecovered, nil}
}

// rotateEndpoint replaces the channel's credential pair with a freshly
// created one and persists it. staleID is the credential that was just
// observed failing ("" when the channel had none); if another delivery
// already rotated past it, the newer pair is adopted instead of
// creating a second webhook.
func (d *Dispatcher) rotateEndpoint(ctx context.Context, db *gorm.DB, sender senders.Sender, channel *models.Channel, staleID string) error {
	lock := d.channelLock(channel.ID)
	lock.Lock()
	defer lock.Unlock()

	var current models.Channel
	if err := db.WithContext(ctx).First(&current, "id = ?", channel.ID).Error; err != nil {
		return err
	}
	if current.HasWebhook() && current.WebhookID.String != staleID {
		*channel = current
		return nil
	}

	endpointID, endpointSecret, err := sender.CreateEndpoint(ctx, channel.ID)
	if err != nil {
		return err
	}

	tx := db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", channel.ID).
		Updates(map[string]any{"webhook_id": endpointID, "webhook_token": endpointSecret})
	if err := tx.Error; err != nil {
		return err
	}

	channel.WebhookID = sql.NullString{String: endpointID, Valid: true}
	channel.WebhookToken = sql.NullString{String: endpointSecret, Valid: true}
	d.log.Sugar().Infof("Webhook credential rotated for channel %s", channel.ID)
	return nil
}

func (d *Dispatcher) channelLock(channelID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lock, ok := d.locks[channelID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	d.locks[channelID] = lock
	return lock
}
