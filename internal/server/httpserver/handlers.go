package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/carbon-tracker/internal/convert"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/service"
	"github.com/gofrs/uuid/v5"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// requireUser answers 401 when the request carries no authenticated owner.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := UserIDFromCtx(r.Context())
	if !ok || id == uuid.Nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return uuid.Nil, false
	}
	return id, true
}

var errInvalidDays = errors.New("days must be a positive integer")

// parseDays reads ?days=; absent means 0 (service default).
func parseDays(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidDays
	}
	return n, nil
}

// --- public ---

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) factors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, convert.ToFactorsView(h.table))
}

func (h *Handler) options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.Options(model.Category(r.PathValue("category"))))
}

// --- auth ---

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, tok, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToAuthView(u, tok))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tok, u, err := h.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToAuthView(u, tok))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	fp, err := h.auth.Me(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToFootprintView(fp))
}

// --- activities ---

func (h *Handler) submitActivity(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req convert.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, fp, err := h.activities.Submit(r.Context(), uid, convert.FromSubmitRequest(req))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.SubmitView{
		Message:   "Activity logged successfully",
		Activity:  convert.ToActivityView(a),
		Footprint: convert.ToFootprintView(fp),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	list, err := h.activities.List(r.Context(), uid, service.ListFilter{
		Category: r.URL.Query().Get("category"),
		Days:     days,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToActivityViews(list))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	_, fp, err := h.activities.Delete(r.Context(), uid, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.DeleteView{
		Message:   "Activity deleted successfully",
		Footprint: convert.ToFootprintView(fp),
	})
}

func (h *Handler) weeklySummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	sum, err := h.activities.WeeklySummary(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWeeklySummaryView(sum))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	fp, err := h.activities.Reconcile(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToFootprintView(fp))
}

// --- dashboard ---

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.dashboard.Stats(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToStatsView(st))
}

func (h *Handler) categoryBreakdown(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	rows, err := h.dashboard.CategoryBreakdown(r.Context(), uid, days)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToBreakdownView(rows))
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.dashboard.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToLeaderboardView(ranked))
}

func (h *Handler) communityAverage(w http.ResponseWriter, r *http.Request) {
	avg, err := h.dashboard.CommunityAverage(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToAverageView(avg))
}
