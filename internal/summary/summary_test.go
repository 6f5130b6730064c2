package summary_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
	"github.com/jonesrussell/north-search/internal/summary"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []summary.Frame
	closed bool
	normal bool
	done   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) WriteJSON(v any) error {
	frame, ok := v.(summary.Frame)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage {
		c.normal = true
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) snapshot() []summary.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]summary.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func summarizerConfig(endpoint string) *config.SummarizerConfig {
	return &config.SummarizerConfig{
		Endpoint:        endpoint,
		QuickTimeout:    time.Second,
		GenerateTimeout: 2 * time.Second,
		AttachWait:      time.Second,
		StreamInterval:  time.Millisecond,
		MaxLength:       200,
		TopResults:      5,
	}
}

func results() []domain.SearchHit {
	return []domain.SearchHit{
		{Title: "Kubernetes Deployment Strategies", ContentPreview: "Rolling updates replace pods gradually."},
		{Title: "Canary Releases", ContentPreview: "Canaries take a slice of traffic first."},
	}
}

func newCoordinator(endpoint string) *summary.Coordinator {
	cfg := summarizerConfig(endpoint)
	return summary.NewCoordinator(cfg, summary.NewClient(cfg), logger.NewNop())
}

func TestSummaryStreamsFallback(t *testing.T) {
	// No endpoint configured: the template fallback streams instead.
	coord := newCoordinator("")
	id := coord.Start("deployment strategies", results())
	require.NotEmpty(t, id)

	conn := newFakeConn()
	require.NoError(t, coord.Attach(id, conn))

	select {
	case <-conn.done:
	case <-time.After(3 * time.Second):
		t.Fatal("summary stream did not finish")
	}

	frames := conn.snapshot()
	require.GreaterOrEqual(t, len(frames), 4)

	assert.Equal(t, summary.FrameStatus, frames[0].Type)
	assert.Equal(t, summary.StateStarting, frames[0].State)
	assert.Equal(t, summary.StateProcessing, frames[1].State)

	last := frames[len(frames)-1]
	assert.Equal(t, summary.FrameDone, last.Type)
	assert.Contains(t, last.Summary, "Found 2 results for 'deployment strategies'")
	assert.Contains(t, last.Summary, "Kubernetes Deployment Strategies")
	assert.Contains(t, last.Summary, "AI summarization unavailable")

	// Reassembling the fragments yields the full summary.
	var rebuilt string
	for _, frame := range frames {
		if frame.Type == summary.FrameChunk {
			rebuilt += frame.Text
			assert.Equal(t, id, frame.RequestID)
		}
	}
	assert.Equal(t, last.Summary, rebuilt)
	assert.True(t, conn.normal)
}

func TestSummaryUsesSummarizerService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string `json:"query"`
			MaxLength int    `json:"max_length"`
			Results   []struct {
				Title string `json:"title"`
			} `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "deployment strategies", req.Query)
		assert.Equal(t, 200, req.MaxLength)
		assert.Len(t, req.Results, 2)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"summary": "Both articles cover staged rollout techniques.",
		})
	}))
	defer server.Close()

	coord := newCoordinator(server.URL)
	id := coord.Start("deployment strategies", results())

	conn := newFakeConn()
	require.NoError(t, coord.Attach(id, conn))

	select {
	case <-conn.done:
	case <-time.After(3 * time.Second):
		t.Fatal("summary stream did not finish")
	}

	frames := conn.snapshot()
	last := frames[len(frames)-1]
	assert.Equal(t, summary.FrameDone, last.Type)
	assert.Equal(t, "Both articles cover staged rollout techniques.", last.Summary)
}

func TestSummaryBuffersResultWithoutAttach(t *testing.T) {
	cfg := summarizerConfig("")
	cfg.AttachWait = 20 * time.Millisecond
	coord := summary.NewCoordinator(cfg, summary.NewClient(cfg), logger.NewNop())

	id := coord.Start("orphaned query", results())
	require.Eventually(t, func() bool {
		return coord.TaskCount() == 0
	}, time.Second, 10*time.Millisecond)

	// Attaching after the window is an error, but the result is pollable.
	assert.Error(t, coord.Attach(id, newFakeConn()))

	result, ok := coord.Result(id)
	require.True(t, ok)
	assert.Equal(t, summary.StateCompleted, result.State)
	assert.Contains(t, result.Summary, "orphaned query")
}

func TestSummaryRejectsAttachAfterWindowCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"summary": "Slow but steady summary text."})
	}))
	defer server.Close()

	cfg := summarizerConfig(server.URL)
	cfg.AttachWait = 10 * time.Millisecond
	coord := summary.NewCoordinator(cfg, summary.NewClient(cfg), logger.NewNop())

	id := coord.Start("slow query", results())
	time.Sleep(50 * time.Millisecond) // window closed; generation still running

	// The task stopped listening, so handing it a connection must fail
	// rather than strand the socket.
	assert.Error(t, coord.Attach(id, newFakeConn()))

	require.Eventually(t, func() bool {
		result, ok := coord.Result(id)
		return ok && result.State == summary.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSummaryRejectsDuplicateAttach(t *testing.T) {
	coord := newCoordinator("")
	id := coord.Start("query", results())

	first := newFakeConn()
	require.NoError(t, coord.Attach(id, first))
	assert.Error(t, coord.Attach(id, newFakeConn()))
	<-first.done
}

func TestSummaryUnknownID(t *testing.T) {
	coord := newCoordinator("")
	assert.Error(t, coord.Attach("nope", newFakeConn()))
}

func TestFallbackSummaryEmptyResults(t *testing.T) {
	coord := newCoordinator("")
	id := coord.Start("nothing here", nil)

	conn := newFakeConn()
	require.NoError(t, coord.Attach(id, conn))
	<-conn.done

	frames := conn.snapshot()
	last := frames[len(frames)-1]
	assert.Contains(t, last.Summary, "No results found for 'nothing here'")
}
