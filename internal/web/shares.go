package web

import (
	"encoding/json"
	"net/http"
	"time"

	"intracal/internal/ics"
	appLog "intracal/internal/log"
	"intracal/internal/model"
	"intracal/internal/share"
)

type shareGrantDTO struct {
	TargetType string `json:"target_type" validate:"required,oneof=MEMBER DEPARTMENT POSITION"`
	TargetID   string `json:"target_id" validate:"required"`
	// Role may be omitted; the configured default role applies then.
	Role string `json:"role" validate:"omitempty,oneof=NONE BUSY_ONLY READER CONTRIBUTOR EDITOR"`
}

type updateSharesRequest struct {
	Mode   string          `json:"mode" validate:"required,oneof=MERGE REPLACE"`
	Grants []shareGrantDTO `json:"grants" validate:"dive"`
}

type updateSharesResponse struct {
	GrantCount int `json:"grant_count"`
}

// handleUpdateShares takes raw picker input for a calendar, normalizes
// it, combines it with the scope's current grants under the requested
// mode, and submits the resulting set. The store receives the already
// combined state, so the submission always carries REPLACE.
func (s *Server) handleUpdateShares(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scopeID := r.PathValue("id")
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, "missing calendar id")
		return
	}

	var req updateSharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw := make([]model.ShareGrant, 0, len(req.Grants))
	for _, g := range req.Grants {
		raw = append(raw, model.ShareGrant{
			TargetType: model.TargetType(g.TargetType),
			TargetID:   g.TargetID,
			Role:       model.Role(g.Role),
		})
	}
	incoming := share.Normalize(raw, s.cfg.DefaultRole())

	existing, err := s.store.FetchShareGrants(ctx, scopeID)
	if err != nil {
		appLog.Error("api shares: fetch failed", err, "scope_id", scopeID)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}

	combined := share.Apply(existing, incoming, model.ApplyMode(req.Mode))
	if err := s.store.SubmitShareGrants(ctx, scopeID, combined, model.ApplyReplace); err != nil {
		appLog.Error("api shares: submit failed", err, "scope_id", scopeID)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, updateSharesResponse{GrantCount: combined.Len()})
}

// handleFeed serves the current snapshot as an iCalendar feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	snap, err := s.currentSnapshot(r.Context())
	if err != nil {
		appLog.Error("feed: aggregation failed", err)
		writeError(w, http.StatusBadGateway, "event store unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Feed(s.cfg.FeedName, snap.result.Events, time.Now())))
}
