package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jonesrussell/north-search/internal/config"
	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/logger"
)

// Frame types sent over the summary channel.
const (
	FrameStatus = "status"
	FrameChunk  = "summary_chunk"
	FrameDone   = "summary_done"
	FrameError  = "error"
)

// Task states.
const (
	StateStarting   = "starting"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Frame is one message on the summary channel.
type Frame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	State     string `json:"state,omitempty"`
	Text      string `json:"text,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Message   string `json:"message,omitempty"`
}

// wordsPerFragment sizes the streamed chunks; small fragments make the
// summary appear to type out.
const wordsPerFragment = 3

// pingInterval keeps the connection alive while generation is slow.
const pingInterval = 15 * time.Second

// Conn is the connection surface the coordinator writes to. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type task struct {
	id       string
	query    string
	results  []domain.SearchHit
	attached chan Conn

	// claimed and expired are guarded by the coordinator mutex. claimed
	// makes duplicate attaches fail deterministically even after the task
	// consumed the channel; expired marks the attach window as closed so a
	// connection can never be handed to a task that stopped listening.
	claimed bool
	expired bool
}

// Result is the buffered terminal state of a finished task, kept for
// clients that never attached and poll instead.
type Result struct {
	State   string    `json:"state"`
	Summary string    `json:"summary"`
	Done    time.Time `json:"-"`
}

// resultRetention bounds how long finished results stay pollable.
const resultRetention = 5 * time.Minute

// Coordinator owns summary tasks end to end: registration, the attach
// window, generation, and streaming. One goroutine per task; the maps are
// only touched under the mutex.
type Coordinator struct {
	cfg    *config.SummarizerConfig
	client *Client
	log    logger.Logger

	mu      sync.Mutex
	tasks   map[string]*task
	results map[string]Result
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg *config.SummarizerConfig, client *Client, log logger.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		client:  client,
		log:     log,
		tasks:   make(map[string]*task),
		results: make(map[string]Result),
	}
}

// Start registers a summary task for a finished search and returns its
// request id. The task waits for a connection to attach; with none inside
// the attach window the summary is still generated and its final state
// buffered for polling via Result.
func (c *Coordinator) Start(query string, results []domain.SearchHit) string {
	t := &task{
		id:       uuid.NewString(),
		query:    query,
		results:  results,
		attached: make(chan Conn, 1),
	}

	c.mu.Lock()
	c.tasks[t.id] = t
	c.mu.Unlock()

	go c.run(t)
	return t.id
}

// Attach hands a connection to its task. Each task accepts exactly one
// connection; late or duplicate attaches are rejected. The send happens
// under the mutex so an attach that wins the race against the window
// timeout is always visible to the task before it stops reading.
func (c *Coordinator) Attach(id string, conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return fmt.Errorf("unknown summary request %q", id)
	}
	if t.claimed {
		return fmt.Errorf("summary request %q already attached", id)
	}
	if t.expired {
		return fmt.Errorf("summary request %q no longer accepts connections", id)
	}
	t.claimed = true
	t.attached <- conn // buffered; at most one claimer ever sends
	return nil
}

// TaskCount reports pending tasks for the stats endpoint.
func (c *Coordinator) TaskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Result returns the buffered terminal state of a finished task.
func (c *Coordinator) Result(id string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[id]
	return r, ok
}

func (c *Coordinator) remove(id string) {
	c.mu.Lock()
	delete(c.tasks, id)
	c.mu.Unlock()
}

// finish buffers a task's terminal state and evicts stale results.
func (c *Coordinator) finish(id, state, summary string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, r := range c.results {
		if now.Sub(r.Done) > resultRetention {
			delete(c.results, key)
		}
	}
	c.results[id] = Result{State: state, Summary: summary, Done: now}
}

func (c *Coordinator) run(t *task) {
	defer c.remove(t.id)

	var conn Conn
	select {
	case conn = <-t.attached:
	case <-time.After(c.cfg.AttachWait):
		c.mu.Lock()
		t.expired = true
		c.mu.Unlock()
		// A connection that claimed the task before expiry was sent under
		// the mutex, so it is visible here; serve it instead of dropping it.
		select {
		case conn = <-t.attached:
		default:
		}
		if conn == nil {
			// No listener; generate anyway and buffer the result so the
			// client can poll for it.
			c.log.Debug("No connection attached; buffering summary for polling",
				logger.String("request_id", t.id),
			)
			c.finish(t.id, StateCompleted, c.generate(t))
			return
		}
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(Frame{Type: FrameStatus, RequestID: t.id, State: StateStarting}); err != nil {
		return
	}
	if err := conn.WriteJSON(Frame{Type: FrameStatus, RequestID: t.id, State: StateProcessing}); err != nil {
		return
	}

	// Generation can run to the full timeout with no data frames; pings
	// keep intermediaries from dropping the idle connection. WriteControl
	// is safe concurrently with WriteJSON.
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.PingMessage, nil, deadline)
			}
		}
	}()

	text := c.generate(t)
	close(pingDone)
	c.finish(t.id, StateCompleted, text)

	if err := c.stream(t.id, conn, text); err != nil {
		c.log.Debug("Summary stream aborted",
			logger.String("request_id", t.id),
			logger.Error(err),
		)
		return
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
}

// generate calls the summarizer; any failure falls back to a template so
// the channel always delivers something.
func (c *Coordinator) generate(t *task) string {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GenerateTimeout)
	defer cancel()

	text, err := c.client.Generate(ctx, t.query, t.results, c.cfg.TopResults, c.cfg.MaxLength)
	if err == nil {
		return text
	}

	c.log.Warn("Summarizer unavailable; using fallback summary",
		logger.String("request_id", t.id),
		logger.Error(err),
	)
	return fallbackSummary(t.query, t.results)
}

func fallbackSummary(query string, results []domain.SearchHit) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'. (AI summarization unavailable)", query)
	}
	return fmt.Sprintf("Found %d results for '%s'. Top result: '%s'. (AI summarization unavailable)",
		len(results), query, results[0].Title)
}

// stream sends the summary in small paced fragments, then the final
// frame carrying the whole text.
func (c *Coordinator) stream(id string, conn Conn, text string) error {
	words := strings.Fields(text)
	for i := 0; i < len(words); i += wordsPerFragment {
		end := i + wordsPerFragment
		if end > len(words) {
			end = len(words)
		}
		fragment := strings.Join(words[i:end], " ")
		if i+wordsPerFragment < len(words) {
			fragment += " "
		}
		if err := conn.WriteJSON(Frame{Type: FrameChunk, RequestID: id, Text: fragment}); err != nil {
			return err
		}
		time.Sleep(c.cfg.StreamInterval)
	}
	return conn.WriteJSON(Frame{Type: FrameDone, RequestID: id, Summary: text})
}
