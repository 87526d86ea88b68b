package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsOn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calendar", r.URL.Path)
		assert.Equal(t, "2026-01-05", r.URL.Query().Get("date"))
		w.Write([]byte(`{"events":[
			{"event_id":"AAPL_2026Q1","symbol":"AAPL","call_date":"2026-01-05T00:00:00Z","quarter":"2026Q1","has_transcript":true},
			{"event_id":"MSFT_2026Q1","symbol":"MSFT","call_date":"2026-01-05T00:00:00Z","quarter":"2026Q1","has_transcript":false}
		]}`))
	}))
	defer srv.Close()

	c, err := NewEarningsClient(EarningsConfig{BaseURL: srv.URL, RateLimitPerMinute: 6000})
	require.NoError(t, err)

	events, err := c.EventsOn(context.Background(), date("2026-01-05"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AAPL_2026Q1", events[0].EventID)
	assert.True(t, events[0].HasScript)
}

func TestTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcripts/AAPL_2026Q1", r.URL.Path)
		w.Write([]byte(`{"event_id":"AAPL_2026Q1","symbol":"AAPL","prepared_remarks":"Good afternoon...","qa_session":"First question...","word_count":8100}`))
	}))
	defer srv.Close()

	c, err := NewEarningsClient(EarningsConfig{BaseURL: srv.URL, RateLimitPerMinute: 6000})
	require.NoError(t, err)

	pack, err := c.Transcript(context.Background(), "AAPL_2026Q1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", pack.Symbol)
	assert.Equal(t, 8100, pack.WordCount)
	assert.NotEmpty(t, pack.PreparedRemarks)
	assert.NotEmpty(t, pack.QASession)
}

func TestTranscript_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewEarningsClient(EarningsConfig{BaseURL: srv.URL, RateLimitPerMinute: 6000})
	require.NoError(t, err)

	_, err = c.Transcript(context.Background(), "NOPE_2026Q9")
	require.Error(t, err)
}
