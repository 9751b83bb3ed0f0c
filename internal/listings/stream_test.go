package listings

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer replays the given payloads as one SSE event each.
func sseServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, payload := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}))
}

// collect drains the stream until its channel closes.
func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestStreamRecordsThenComplete(t *testing.T) {
	server := sseServer(t,
		`{"status": "initialized"}`,
		`{"id": "rm_1", "address": "1 Test Road", "price": "£450,000", "property_type": "Flat", "image_urls": ["http://img/1.jpg"]}`,
		`{"id": "rm_2", "address": "2 Test Road", "price": "£500,000"}`,
		`{"id": "rm_3", "address": "3 Test Road", "price": "£550,000"}`,
		`{"status": "complete"}`,
	)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream)
	require.Len(t, events, 5)

	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, "initialized", events[0].Status)

	var ids []string
	for _, ev := range events[1:4] {
		require.Equal(t, EventRecord, ev.Type)
		ids = append(ids, ev.Record.ID)
	}
	assert.Equal(t, []string{"rm_1", "rm_2", "rm_3"}, ids)
	assert.Equal(t, "1 Test Road", events[1].Record.Address)
	assert.Equal(t, []string{"http://img/1.jpg"}, events[1].Record.ImageURLs)

	assert.Equal(t, EventComplete, events[4].Type)
}

func TestStreamErrorKeepsReceivedRecords(t *testing.T) {
	server := sseServer(t,
		`{"id": "rm_1", "address": "1 Test Road"}`,
		`{"id": "rm_2", "address": "2 Test Road"}`,
		`{"error": "scrape backend crashed"}`,
	)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream)
	require.Len(t, events, 3)
	assert.Equal(t, EventRecord, events[0].Type)
	assert.Equal(t, EventRecord, events[1].Type)
	assert.Equal(t, EventFailed, events[2].Type)
	assert.Equal(t, "scrape backend crashed", events[2].Reason)
}

func TestStreamDropsMalformedPayloads(t *testing.T) {
	server := sseServer(t,
		`{"id": "rm_1"}`,
		`{not json at all`,
		`{"no_id_here": true}`,
		`{"id": "rm_2"}`,
		`{"status": "complete"}`,
	)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream)
	require.Len(t, events, 3)
	assert.Equal(t, "rm_1", events[0].Record.ID)
	assert.Equal(t, "rm_2", events[1].Record.ID)
	assert.Equal(t, EventComplete, events[2].Type)
}

func TestStreamIgnoresMessagesAfterComplete(t *testing.T) {
	server := sseServer(t,
		`{"id": "rm_1"}`,
		`{"status": "complete"}`,
		`{"id": "rm_late"}`,
		`{"error": "should never surface"}`,
	)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, EventRecord, events[0].Type)
	assert.Equal(t, EventComplete, events[1].Type)
}

func TestStreamNoResults(t *testing.T) {
	server := sseServer(t,
		`{"status": "no_results"}`,
		`{"status": "complete"}`,
	)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "ZZ99 9ZZ")
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, StatusNoResults, events[0].Status)
	assert.Equal(t, EventComplete, events[1].Type)
}

func TestStreamConnectionDropIsFailure(t *testing.T) {
	server := sseServer(t, `{"id": "rm_1"}`)
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)
	defer stream.Close()

	// The handler returns after one record, so the connection ends
	// without a complete event.
	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, EventRecord, events[0].Type)
	assert.Equal(t, EventFailed, events[1].Type)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	blocker := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", `{"id": "rm_1"}`)
		flusher.Flush()
		<-blocker
	}))
	defer server.Close()
	defer close(blocker)

	client := NewClient(server.URL, logrus.New())
	stream, err := client.Open(context.Background(), 1, "SW1A 1AA")
	require.NoError(t, err)

	stream.Close()
	stream.Close()

	// The channel must close without a Failed event: teardown is not a
	// stream failure.
	for ev := range stream.Events() {
		assert.NotEqual(t, EventFailed, ev.Type)
	}

	// Closing after termination stays safe.
	stream.Close()
}

func TestStreamRejectsNonSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, logrus.New())
	_, err := client.Open(context.Background(), 1, "SW1A 1AA")
	assert.Error(t, err)
}
