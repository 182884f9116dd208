package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kavrel/chirpwatch/config"
	"github.com/kavrel/chirpwatch/lib"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("chirpwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/channels/{channel_id}", func(r chi.Router) {
			r.Get("/subscriptions", ctrl.listSubscriptions)
			r.Post("/subscriptions", ctrl.subscribe)
			r.Delete("/subscriptions", ctrl.unsubscribeAll)
			r.Delete("/subscriptions/{handle}", ctrl.unsubscribe)
			r.Post("/preview", ctrl.previewLatest)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.WriteHeader(status)
		if b != nil {
			w.Write(b)
		}
	}
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channel_id")
	handle := r.FormValue("handle")
	guildID := r.FormValue("guild_id")

	if handle == "" {
		ctrl.reject(w, 400, errors.New("handle is required"))
		return
	}
	if guildID == "" {
		ctrl.reject(w, 400, errors.New("guild_id is required"))
		return
	}

	msg, err := ctrl.svc.Subscribe(ctx, handle, channelID, guildID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, 200, ResultView{Message: msg})
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channel_id")
	handle := chi.URLParam(r, "handle")

	msg, err := ctrl.svc.Unsubscribe(ctx, handle, channelID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, 200, ResultView{Message: msg})
}

func (ctrl *controller) unsubscribeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channel_id")

	msg, err := ctrl.svc.UnsubscribeAll(ctx, channelID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, 200, ResultView{Message: msg})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channel_id")

	handles, err := ctrl.svc.ListSubscriptions(ctx, channelID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, 200, SubscriptionListView{}.From(channelID, handles))
}

func (ctrl *controller) previewLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channel_id")
	handle := r.FormValue("handle")
	guildID := r.FormValue("guild_id")

	if handle == "" {
		ctrl.reject(w, 400, errors.New("handle is required"))
		return
	}
	if guildID == "" {
		ctrl.reject(w, 400, errors.New("guild_id is required"))
		return
	}

	msg, err := ctrl.svc.PreviewLatest(ctx, handle, channelID, guildID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, 200, ResultView{Message: msg})
}
