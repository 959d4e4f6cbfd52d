package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/and161185/carbon-tracker/internal/aggregate"
	"github.com/and161185/carbon-tracker/internal/convert"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/repository/memory"
	"github.com/and161185/carbon-tracker/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	t      *testing.T
	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	log := zaptest.NewLogger(t)
	auth := service.NewAuthService(store, []byte("test-secret"), "carbon-tracker", time.Hour)
	acts := service.NewActivityService(store, nil, log, service.LedgerOptions{})
	dash := service.NewDashboardService(store, store, service.LedgerOptions{})
	h := New(auth, acts, dash, nil, log)
	return &testEnv{t: t, router: h.Router(auth)}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(name string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out convert.AuthView
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(e.t, out.Token)
	return out.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPublicEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decode[map[string]any](t, rec)["status"])

	rec = e.do(http.MethodGet, "/api/factors", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	factors := decode[map[string][]emissions.Option](t, rec)
	assert.Len(t, factors, 4)
	assert.Equal(t, "beef", factors["food"][0].Value)

	rec = e.do(http.MethodGet, "/api/activities/options/energy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]emissions.Option](t, rec), 6)

	rec = e.do(http.MethodGet, "/api/activities/options/space", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="GET /api/health"`)
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice")

	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "x@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bo", "email": "bo@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[convert.AuthView](t, rec).User.Username)

	rec = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[convert.FootprintView](t, rec)
	assert.Equal(t, "alice", me.Username)
	assert.Nil(t, me.LastActivityDate)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/auth/me", "forged", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/leaderboard", nil)
	req.Header.Set("Authorization", "Basic abc")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rec = e.do(http.MethodPost, "/api/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityLifecycle(t *testing.T) {
	e := newEnv(t)
	token := e.register("alice")

	rec := e.do(http.MethodPost, "/api/activities", token, map[string]any{
		"category": "transport", "activityType": "car-petrol", "amount": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[convert.SubmitView](t, rec)
	assert.Equal(t, 21.0, created.Activity.Emissions)
	assert.Equal(t, "km", created.Activity.Unit)
	assert.Equal(t, 21.0, created.Footprint.TotalEmissions)
	assert.Equal(t, 1, created.Footprint.Streak)

	rec = e.do(http.MethodPost, "/api/activities", token, map[string]any{
		"category": "food", "activityType": "beef", "amount": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, body := range []map[string]any{
		{"category": "food", "activityType": "unicorn", "amount": 1},
		{"category": "space", "activityType": "beef", "amount": 1},
		{"category": "food", "activityType": "beef", "amount": 0},
		{"category": "food", "activityType": "beef"},
		{"category": "food", "activityType": "beef", "amount": 1, "occurredAt": time.Now().Add(24 * time.Hour)},
	} {
		rec = e.do(http.MethodPost, "/api/activities", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
		assert.Equal(t, "validation_failed", decode[map[string]string](t, rec)["type"])
	}
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/activities", "", map[string]any{
		"category": "food", "activityType": "beef", "amount": 1,
	}).Code)

	rec = e.do(http.MethodGet, "/api/activities", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]convert.ActivityView](t, rec)
	require.Len(t, list, 2)

	rec = e.do(http.MethodGet, "/api/activities?category=food&days=7", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	food := decode[[]convert.ActivityView](t, rec)
	require.Len(t, food, 1)
	assert.Equal(t, "beef", food[0].ActivityType)

	for _, q := range []string{"days=0", "days=-3", "days=abc"} {
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/activities?"+q, token, nil).Code, q)
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/dashboard/category-breakdown?"+q, token, nil).Code, q)
	}

	other := e.register("bob")
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/activities/"+food[0].ID, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/activities/not-a-uuid", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/activities/"+uuid.Must(uuid.NewV4()).String(), token, nil).Code)

	rec = e.do(http.MethodDelete, "/api/activities/"+food[0].ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 21.0, decode[convert.DeleteView](t, rec).Footprint.TotalEmissions)

	rec = e.do(http.MethodGet, "/api/activities/weekly-summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decode[convert.WeeklySummaryView](t, rec)
	assert.Equal(t, 1, week.ActivitiesCount)
	assert.Equal(t, convert.CategoryView{Count: 1, Emissions: 21}, week.Summary["transport"])

	rec = e.do(http.MethodPost, "/api/activities/reconcile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 21.0, decode[convert.FootprintView](t, rec).TotalEmissions)
}

func TestDashboard(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/dashboard/community-average", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"average":0,"userCount":0}`, rec.Body.String())

	amounts := map[string]float64{"five": 5, "one": 1, "three": 3}
	tokens := map[string]string{}
	for _, name := range []string{"five", "one", "three", "idle"} {
		tokens[name] = e.register(name)
	}
	for name, kg := range amounts {
		// vegetables are 2 kg CO2e per kg
		rec := e.do(http.MethodPost, "/api/activities", tokens[name], map[string]any{
			"category": "food", "activityType": "vegetables", "amount": kg / 2,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = e.do(http.MethodGet, "/api/dashboard/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]convert.LeaderboardRowView](t, rec)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"one", "three", "five"}, []string{board[0].Username, board[1].Username, board[2].Username})
	assert.Equal(t, []int{1, 2, 3}, []int{board[0].Rank, board[1].Rank, board[2].Rank})

	rec = e.do(http.MethodGet, "/api/dashboard/community-average", tokens["idle"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, convert.AverageView{Average: 3, UserCount: 3}, decode[convert.AverageView](t, rec))

	rec = e.do(http.MethodGet, "/api/dashboard/stats", tokens["five"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[convert.StatsView](t, rec)
	assert.Equal(t, "five", st.User.Username)
	assert.Equal(t, 5.0, st.Today.Emissions)
	assert.Equal(t, 1, st.Week.ActivitiesCount)
	assert.False(t, st.Equivalency.IsEmpty)

	rec = e.do(http.MethodGet, "/api/dashboard/category-breakdown", tokens["three"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []convert.BreakdownRowView{{Category: "food", Emissions: 3, Count: 1}}, decode[[]convert.BreakdownRowView](t, rec))

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/dashboard/stats", "", nil).Code)
}

type brokenDashboard struct{}

func (brokenDashboard) Stats(context.Context, uuid.UUID) (service.Stats, error) {
	return service.Stats{}, errors.New("pq: connection refused")
}
func (brokenDashboard) CategoryBreakdown(context.Context, uuid.UUID, int) ([]aggregate.CategoryRow, error) {
	return nil, errors.New("boom")
}
func (brokenDashboard) Leaderboard(context.Context) ([]aggregate.Ranked, error) {
	panic("leaderboard exploded")
}
func (brokenDashboard) CommunityAverage(context.Context) (aggregate.Average, error) {
	return aggregate.Average{}, errors.New("boom")
}

var _ service.DashboardService = brokenDashboard{}

func TestOverflowingSubmitKeepsPublicBoardsReadable(t *testing.T) {
	e := newEnv(t)
	alice := e.register("alice")
	mallory := e.register("mallory")

	rec := e.do(http.MethodPost, "/api/activities", alice, map[string]any{
		"category": "food", "activityType": "beef", "amount": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/activities", mallory, map[string]any{
		"category": "food", "activityType": "beef", "amount": 1e308,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_failed", decode[map[string]string](t, rec)["type"])

	rec = e.do(http.MethodGet, "/api/dashboard/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	board := decode[[]convert.LeaderboardRowView](t, rec)
	require.Len(t, board, 1)
	assert.Equal(t, "alice", board[0].Username)

	rec = e.do(http.MethodGet, "/api/dashboard/community-average", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avg := decode[convert.AverageView](t, rec)
	assert.Equal(t, 1, avg.UserCount)
	assert.Equal(t, 60.0, avg.Average)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": strings.Repeat("p", 80),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_failed", decode[map[string]string](t, rec)["type"])
}

func TestServerErrorsAreGeneric(t *testing.T) {
	store := memory.New()
	log := zaptest.NewLogger(t)
	auth := service.NewAuthService(store, []byte("k"), "", time.Hour)
	h := New(auth, service.NewActivityService(store, nil, log, service.LedgerOptions{}), brokenDashboard{}, nil, log)
	router := h.Router(auth)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/community-average", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"type":"server_error","detail":"server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/leaderboard", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"type":"server_error","detail":"server error"}`, rec.Body.String())
}

func TestRoutingMisses(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/nope", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(http.MethodPut, "/api/activities", "", nil).Code)
}
