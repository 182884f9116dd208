package main

import (
	"net/http"
	"os"
	"time"

	"github.com/kavrel/chirpwatch/app"
	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/discord"
	"github.com/kavrel/chirpwatch/lib"
	"github.com/kavrel/chirpwatch/lib/dispatch"
	"github.com/kavrel/chirpwatch/lib/feed"
	"github.com/kavrel/chirpwatch/lib/poller"
	"github.com/kavrel/chirpwatch/lib/reconcile"
	"github.com/kavrel/chirpwatch/lib/render"
	"github.com/kavrel/chirpwatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),

		fx.Provide(discord.NewClient),
		fx.Provide(senders.NewSenderRegistry),

		fx.Provide(feed.NewFetcher),
		fx.Provide(render.NewRenderer),
		fx.Provide(dispatch.NewDispatcher),
		fx.Provide(reconcile.NewReconciler),
		fx.Provide(poller.NewPoller),

		fx.Provide(lib.NewService),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
		fx.Invoke(func(*poller.Poller) {}),
	).Run()
}
