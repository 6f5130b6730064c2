package api_test

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

	"github.com/jonesrussell/north-search/internal/api"
	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/summary"
)

type fakeSearcher struct {
	result   *domain.SearchResult
	err      error
	requests []*domain.SearchRequest
}

func (s *fakeSearcher) Search(_ context.Context, req *domain.SearchRequest) (*domain.SearchResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	out := *s.result
	out.Query = req.Query
	return &out, nil
}

func (s *fakeSearcher) CacheStats() map[string]any {
	return map[string]any{"entries": 1, "capacity": 100}
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Service.Name = "query-service"
	cfg.Service.Version = "1.2.3"
	cfg.Service.MetricsEnabled = true
	cfg.Service.ExposeConfig = true
	cfg.Search.MaxLimit = 50
	cfg.Search.DefaultLimit = 10
	cfg.Summarizer.AttachWait = time.Second
	cfg.Summarizer.StreamInterval = time.Millisecond
	cfg.Summarizer.GenerateTimeout = time.Second
	cfg.Summarizer.MaxLength = 200
	cfg.Summarizer.TopResults = 5
	return cfg
}

func searchResult() *domain.SearchResult {
	return &domain.SearchResult{
		Results: []domain.SearchHit{
			{ID: "d1", Title: "First Result", URL: "https://alpha.com/a", Domain: "alpha.com"},
		},
		TotalFound:   1,
		SearchMethod: "chunk_search",
	}
}

func newRouter(t *testing.T, cfg *config.Config, searcher api.Searcher, pinger api.Pinger) (*gin.Engine, *summary.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coordinator := summary.NewCoordinator(&cfg.Summarizer, summary.NewClient(&cfg.Summarizer), logger.NewNop())
	handler := api.NewHandler(cfg, searcher, coordinator, pinger, logger.NewNop())

	router := gin.New()
	api.SetupRoutes(router, handler, &cfg.Service)
	return router, coordinator
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearchGet(t *testing.T) {
	searcher := &fakeSearcher{result: searchResult()}
	router, _ := newRouter(t, testConfig(), searcher, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/search?q=golang&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "golang", result.Query)
	assert.Empty(t, result.SummaryID)
	require.Len(t, searcher.requests, 1)
	assert.Equal(t, 5, searcher.requests[0].Limit)
}

func TestSearchPost(t *testing.T) {
	searcher := &fakeSearcher{result: searchResult()}
	router, _ := newRouter(t, testConfig(), searcher, &fakePinger{})

	rec := doRequest(router, http.MethodPost, "/api/v1/search", `{"query":"golang","limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, searcher.requests, 1)
	assert.Equal(t, "golang", searcher.requests[0].Query)
	assert.Equal(t, 3, searcher.requests[0].Limit)
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestSearchDefaultsLimit(t *testing.T) {
	searcher := &fakeSearcher{result: searchResult()}
	router, _ := newRouter(t, testConfig(), searcher, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/search?q=golang", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, searcher.requests, 1)
	assert.Equal(t, 10, searcher.requests[0].Limit)
}

func TestSearchServiceError(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{err: errors.New("store down")}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/search?q=golang", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SEARCH_ERROR")
}

func TestSearchWithSummarizeMintsTask(t *testing.T) {
	router, coordinator := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/search?q=golang&summarize=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SummaryID)
	assert.Equal(t, 1, coordinator.TaskCount())
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "query-service")
}

func TestReadiness(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})
	rec := doRequest(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{err: errors.New("refused")})
	rec = doRequest(down, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cache")
	assert.Contains(t, rec.Body.String(), "summary_tasks")
}

func TestConfigEndpointGated(t *testing.T) {
	cfg := testConfig()
	router, _ := newRouter(t, cfg, &fakeSearcher{result: searchResult()}, &fakePinger{})
	rec := doRequest(router, http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	cfg = testConfig()
	cfg.Service.ExposeConfig = false
	hidden, _ := newRouter(t, cfg, &fakeSearcher{result: searchResult()}, &fakePinger{})
	rec = doRequest(hidden, http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	rec := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestSummaryOverWebSocket(t *testing.T) {
	router, coordinator := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})
	server := httptest.NewServer(router)
	defer server.Close()

	id := coordinator.Start("golang", searchResult().Results)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/summary/" + id
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = res.Body.Close()

	var sawDone bool
	var rebuilt, full string
	deadline := time.Now().Add(5 * time.Second)
	for !sawDone {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame summary.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case summary.FrameChunk:
			rebuilt += frame.Text
		case summary.FrameDone:
			full = frame.Summary
			sawDone = true
		}
	}

	require.True(t, sawDone, "expected a summary_done frame")
	assert.Equal(t, full, rebuilt)
	assert.Contains(t, full, "golang")
}

func TestSummaryPollAfterStream(t *testing.T) {
	router, coordinator := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})

	id := coordinator.Start("golang", searchResult().Results)
	conn := newDrainedConn(t, coordinator, id)
	<-conn

	rec := doRequest(router, http.MethodGet, "/api/v1/summary/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed")

	rec = doRequest(router, http.MethodGet, "/api/v1/summary/unknown-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// newDrainedConn attaches a throwaway connection and returns a channel
// closed once the coordinator closes it.
func newDrainedConn(t *testing.T, coordinator *summary.Coordinator, id string) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	conn := &sinkConn{done: done}
	require.NoError(t, coordinator.Attach(id, conn))
	return done
}

type sinkConn struct {
	once sync.Once
	done chan struct{}
}

func (c *sinkConn) WriteJSON(any) error                       { return nil }
func (c *sinkConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *sinkConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func TestSummarySocketUnknownID(t *testing.T) {
	router, _ := newRouter(t, testConfig(), &fakeSearcher{result: searchResult()}, &fakePinger{})
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/summary/does-not-exist"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = res.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}
