package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pastebin/svc/util"
)

type HealthResponse struct {
	Status string `json:"status"`
}
type ReadyResponse struct {
	Ready    bool   `json:"ready"`
	Store    string `json:"store"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Entries  int    `json:"entries"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// Ready reports the store plus whichever optional backends are configured.
// A configured backend that does not answer makes the service unready.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	resp := ReadyResponse{
		Ready:    true,
		Store:    "up",
		Database: "unavailable",
		Cache:    "unavailable",
	}
	if s.store == nil {
		resp.Store = "down"
		resp.Ready = false
	} else {
		v := s.store.Snapshot()
		resp.Entries = len(v.Active) + len(v.Pinned) + len(v.Deleted)
	}
	if s.db != nil {
		dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer dbCancel()
		resp.Database = "up"
		if err := s.db.Ping(dbCtx); err != nil {
			util.Error().Err(err).Msg("database health check failed")
			resp.Database = "down"
			resp.Ready = false
		}
	}
	if s.rdb != nil {
		cacheCtx, cacheCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cacheCancel()
		resp.Cache = "up"
		if err := s.rdb.Ping(cacheCtx); err != nil {
			util.Error().Err(err).Msg("cache health check failed")
			resp.Cache = "down"
			resp.Ready = false
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(resp)
}
