package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
	"ridemeter/internal/logger"
	"ridemeter/internal/money"
	"ridemeter/internal/repository"
	"ridemeter/internal/repository/memory"
	"ridemeter/internal/service"
)

// brokenWrites accepts reads but rejects every write.
type brokenWrites struct {
	*memory.Store
	mu     sync.Mutex
	broken bool
}

func (s *brokenWrites) Set(ctx context.Context, driverID, key string, value []byte) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, driverID, key, value)
}

func (s *brokenWrites) breakWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
}

type countingTransport struct {
	mu      sync.Mutex
	records int
}

func (t *countingTransport) Push(ctx context.Context, batch repository.SyncBatch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records += len(batch.Records)
	return nil
}

type testServer struct {
	clock     *clock.Manual
	store     *brokenWrites
	transport *countingTransport
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		clock:     clock.NewManual(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)),
		store:     &brokenWrites{Store: memory.NewStore()},
		transport: &countingTransport{},
	}

	registry, err := service.NewSessionRegistry(service.RegistryDeps{
		Store:     s.store,
		Transport: s.transport,
		Clock:     s.clock,
		Billing: service.BillingConfig{
			FreeWaitingSeconds: 30,
			PricePerSecond:     money.MustParseRate("0.05"),
			Currency:           "USD",
		},
		Logger: logger.Discard(),
	})
	require.NoError(t, err)

	sessions := NewSessionHandler(registry, 10*time.Millisecond, logger.Discard())
	billing := NewBillingHandler(registry, service.NewReceiptService(s.clock))

	r := gin.New()
	drivers := r.Group("/v1/drivers/:id")
	drivers.POST("/session/events", sessions.ApplyEvent)
	drivers.GET("/session", sessions.GetView)
	drivers.GET("/session/ws", sessions.Stream)
	drivers.GET("/billing/live", billing.Live)
	drivers.GET("/billing/records", billing.Records)
	drivers.DELETE("/billing/records", billing.Clear)
	drivers.POST("/billing/sync", billing.Sync)
	drivers.GET("/billing/summary", billing.Summary)
	s.router = r
	return s
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) event(t *testing.T, driverID, ev string) EventResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/v1/drivers/"+driverID+"/session/events", `{"event":"`+ev+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp EventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSessionHandler_ApplyEvent(t *testing.T) {
	s := newTestServer(t)

	resp := s.event(t, "driver-1", "confirm")
	assert.True(t, resp.Changed)
	assert.Equal(t, domain.AwaitingClient(), resp.View.State)
	assert.True(t, resp.View.Controls.Cancel)

	resp = s.event(t, "driver-1", "force_end")
	assert.False(t, resp.Changed, "illegal events are not errors")
	assert.Equal(t, domain.AwaitingClient(), resp.View.State)
}

func TestSessionHandler_ApplyEventValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/drivers/driver-1/session/events", `{"event":"honk"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/drivers/driver-1/session/events", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/drivers/driver-1/session/events", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_PersistenceFailureReturnsView(t *testing.T) {
	s := newTestServer(t)
	s.event(t, "driver-1", "confirm")
	s.store.breakWrites()

	w := s.do(http.MethodPost, "/v1/drivers/driver-1/session/events", `{"event":"confirm"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp EventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, domain.OnTrip(), resp.View.State)
	assert.NotEmpty(t, resp.Error)
}

func TestSessionHandler_GetViewTicks(t *testing.T) {
	s := newTestServer(t)
	s.event(t, "driver-1", "confirm")
	s.event(t, "driver-1", "confirm")
	s.event(t, "driver-1", "wait_start")
	s.clock.Advance(42 * time.Second)

	w := s.do(http.MethodGet, "/v1/drivers/driver-1/session", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view domain.ViewState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.ActiveMeter)
	assert.Equal(t, domain.BillingWaiting, view.ActiveMeter.Kind)
	assert.Equal(t, int64(42), view.ActiveMeter.ElapsedSeconds)
	assert.Equal(t, int64(12), view.ActiveMeter.BillableSeconds)
}

func TestBillingHandler_LedgerEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, ev := range []string{"confirm", "confirm", "wait_start"} {
		s.event(t, "driver-1", ev)
	}
	s.clock.Advance(45 * time.Second)
	s.event(t, "driver-1", "confirm")

	w := s.do(http.MethodGet, "/v1/drivers/driver-1/billing/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records RecordsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records.Records, 1)
	assert.Equal(t, "0.75", records.Records[0].Amount.String())

	w = s.do(http.MethodGet, "/v1/drivers/driver-1/billing/summary?format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0.75 USD")

	w = s.do(http.MethodGet, "/v1/drivers/driver-1/billing/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary domain.LedgerSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Count)

	w = s.do(http.MethodPost, "/v1/drivers/driver-1/billing/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"synced":true}`, w.Body.String())
	assert.Equal(t, 1, s.transport.records)

	w = s.do(http.MethodDelete, "/v1/drivers/driver-1/billing/records", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/v1/drivers/driver-1/billing/records", "")
	assert.JSONEq(t, `{"driver_id":"driver-1","records":[]}`, w.Body.String())
}

func TestBillingHandler_Live(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/v1/drivers/driver-1/billing/live", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"waiting_started_at":null,"emergency_started_at":null}`, w.Body.String())

	s.event(t, "driver-1", "confirm")
	s.event(t, "driver-1", "confirm")
	s.event(t, "driver-1", "wait_start")

	w = s.do(http.MethodGet, "/v1/drivers/driver-1/billing/live", "")
	var live domain.LiveState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &live))
	assert.True(t, live.Running(domain.BillingWaiting))
}

func TestSessionHandler_Stream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/drivers/driver-1/session/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first StreamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "view", first.Type)
	require.NotNil(t, first.View)
	assert.Equal(t, domain.Idle(), first.View.State)

	require.NoError(t, conn.WriteJSON(EventRequest{Event: "confirm"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "event" {
			continue
		}
		require.NotNil(t, msg.Changed)
		assert.True(t, *msg.Changed)
		assert.Equal(t, domain.AwaitingClient(), msg.View.State)
		break
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, mapErrorToHTTPStatus(service.ErrUnknownEvent))
	assert.Equal(t, http.StatusBadRequest, mapErrorToHTTPStatus(service.ErrInvalidDriverID))
	assert.Equal(t, http.StatusServiceUnavailable, mapErrorToHTTPStatus(service.ErrPersistence))
	assert.Equal(t, http.StatusServiceUnavailable, mapErrorToHTTPStatus(repository.ErrStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, mapErrorToHTTPStatus(errors.New("boom")))
}
