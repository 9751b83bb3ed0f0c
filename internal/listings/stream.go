package listings

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/models"
)

// EventType discriminates listing stream events.
type EventType int

const (
	// EventRecord carries one listing.
	EventRecord EventType = iota
	// EventStatus carries a non-terminal framing status ("initialized",
	// "no_results").
	EventStatus
	// EventComplete marks normal termination; no further events follow.
	EventComplete
	// EventFailed marks termination through an error event or transport
	// failure. Records already delivered remain valid.
	EventFailed
)

// Event is one parsed stream event.
type Event struct {
	Type   EventType
	Record *models.ListingRecord
	Status string
	Reason string
}

// StatusNoResults is the framing status for a search that found nothing.
const StatusNoResults = "no_results"

// Client opens listing streams against the scrape service.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	client  *http.Client
}

// NewClient returns a stream client. The underlying HTTP client carries no
// overall timeout: a stream stays open for the life of a search and is torn
// down through its context instead.
func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Stream is one open listing stream. Events arrive in delivery order on
// Events(); the channel closes after a terminal event or Close.
type Stream struct {
	generation uint64
	events     chan Event
	cancel     context.CancelFunc
	closed     chan struct{}
	closeOnce  sync.Once
	logger     *logrus.Entry
}

// Open starts the stream for one search generation. Callers own at most one
// stream at a time and must Close the previous generation's stream first.
func (c *Client) Open(ctx context.Context, generation uint64, postcode string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	endpoint := fmt.Sprintf("%s/scrape?postcode=%s", c.baseURL, url.QueryEscape(postcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream request returned status %d", resp.StatusCode)
	}

	s := &Stream{
		generation: generation,
		events:     make(chan Event, 64),
		cancel:     cancel,
		closed:     make(chan struct{}),
		logger: c.logger.WithFields(logrus.Fields{
			"generation": generation,
			"postcode":   postcode,
		}),
	}
	go s.consume(resp)
	return s, nil
}

// Generation returns the search generation this stream was opened for.
func (s *Stream) Generation() uint64 {
	return s.generation
}

// Events returns the event channel. It closes after EventComplete,
// EventFailed, or Close.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close tears the stream down. It is idempotent and safe to call after the
// stream has already terminated.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
}

// consume reads server-sent events off the response body and dispatches each
// data payload until a terminal event or teardown.
func (s *Stream) consume(resp *http.Response) {
	defer resp.Body.Close()
	defer close(s.events)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if s.dispatch(data.String()) {
				return
			}
			data.Reset()
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comments and other SSE fields carry nothing we need.
		}
	}

	// Trailing payload without a closing blank line.
	if data.Len() > 0 && s.dispatch(data.String()) {
		return
	}

	select {
	case <-s.closed:
		return
	default:
	}

	if err := scanner.Err(); err != nil {
		s.fail(fmt.Sprintf("stream read failed: %v", err))
		return
	}
	// A connection that ends without a complete event counts as an error.
	s.fail("stream closed before completion")
}

// dispatch classifies one payload and emits the matching event. It returns
// true when the stream is terminal and consumption must stop.
func (s *Stream) dispatch(payload string) bool {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return false
	}

	var probe struct {
		Error  *string `json:"error"`
		Status *string `json:"status"`
		ID     *string `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		s.logger.WithError(err).Error("Dropped malformed stream payload")
		return false
	}

	switch {
	case probe.Error != nil:
		s.fail(*probe.Error)
		return true

	case probe.Status != nil:
		if *probe.Status == "complete" {
			s.logger.Info("Listing stream complete")
			s.send(Event{Type: EventComplete})
			return true
		}
		s.send(Event{Type: EventStatus, Status: *probe.Status})
		return false

	case probe.ID != nil && *probe.ID != "":
		var record models.ListingRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			s.logger.WithError(err).Error("Dropped malformed listing record")
			return false
		}
		if !s.send(Event{Type: EventRecord, Record: &record}) {
			return true
		}
		return false

	default:
		s.logger.WithField("payload", payload).Error("Dropped stream payload without id, status or error")
		return false
	}
}

func (s *Stream) fail(reason string) {
	select {
	case <-s.closed:
		// Deliberate teardown, not a stream failure.
		return
	default:
	}
	s.logger.WithField("reason", reason).Warn("Listing stream failed")
	s.send(Event{Type: EventFailed, Reason: reason})
}

// send delivers an event unless the stream has been closed underneath us.
func (s *Stream) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.closed:
		return false
	}
}
