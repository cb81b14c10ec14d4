package api

import (
	"context"
	"net/http"
	"time"

	"pastebin/cfg"
	"pastebin/svc/cache"
	"pastebin/svc/db"
	"pastebin/svc/hist"
	"pastebin/svc/lim"
	"pastebin/svc/util"
	"pastebin/svc/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

// Deps are the collaborators the handlers need. DB and Redis are optional
// and only consulted by the readiness probe and the limiter.
type Deps struct {
	Store    *hist.Store
	Renderer *web.Renderer
	Pages    *cache.PageCache
	Limiter  *lim.Limiter
	DB       *db.SQLite
	Redis    *db.Redis
}

type Server struct {
	router     *chi.Mux
	store      *hist.Store
	cfg        *cfg.Cfg
	db         *db.SQLite
	rdb        *db.Redis
	httpServer *http.Server
}

func NewServer(c *cfg.Cfg, addr string, d Deps) *Server {
	s := &Server{
		store: d.Store,
		cfg:   c,
		db:    d.DB,
		rdb:   d.Redis,
	}
	r := chi.NewRouter()
	mw := NewMw(d.Limiter, c)
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", s.Health)
		r.Get("/ready", s.Ready)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Handle("/metrics", mw.BasicAuthMetrics(promhttp.Handler()))
	})
	if !c.IsProduction() {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Use(mw.RequestID)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", req.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
		}))
		if len(c.TrustedProxies) > 0 {
			r.Use(middleware.RealIP)
		}
		r.Use(mw.ContextTimeout)
		r.Use(mw.SecurityHeaders)
		r.Use(mw.Instrument)
		hdl := &Hdl{store: d.Store, render: d.Renderer, pages: d.Pages, cfg: c}

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(lim.Write))
			r.HandleFunc("/paste", hdl.Paste)
			r.HandleFunc("/pin", hdl.Pin())
			r.HandleFunc("/delete", hdl.Delete())
			r.HandleFunc("/undelete", hdl.Undelete())
			r.HandleFunc("/deletePin", hdl.DeletePin())
			r.Post("/updateShortUrls", hdl.UpdateShortURLs)
		})
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(lim.Read))
			r.Get("/viewDeleted", hdl.ViewDeleted)
			r.Get("/shortUrls", hdl.ShortURLs)
			r.Get("/api/history", hdl.History)
			r.HandleFunc("/", hdl.Root)
			r.HandleFunc("/*", hdl.Root)
		})
	})
	s.router = r
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 256 * 1024,
	}
	return s
}
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
func (s *Server) Start() error {
	util.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("addr", s.httpServer.Addr).Msg("server failed to start")
		return err
	}
	return nil
}
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
