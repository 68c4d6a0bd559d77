package insight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeTextSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sentimentScore":0.7,"sentiment":"positive","keyPhrases":["slept well"]}`))
	}))
	defer srv.Close()

	analysis, err := New(srv.URL).AnalyzeText(context.Background(), "slept well last night")
	require.NoError(t, err)
	assert.False(t, analysis.Unavailable)
	assert.Equal(t, "positive", analysis.Sentiment)
	assert.InDelta(t, 0.7, analysis.SentimentScore, 1e-9)
}

func TestAnalyzeTextFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	analysis, err := New(srv.URL).AnalyzeText(context.Background(), "some text")
	require.NoError(t, err)
	assert.True(t, analysis.Unavailable)
	assert.Equal(t, "neutral", analysis.Sentiment)
	assert.Zero(t, analysis.SentimentScore)
}

func TestAnalyzeTextFallsBackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(srv.URL, WithTimeout(20*time.Millisecond))
	analysis, err := client.AnalyzeText(context.Background(), "some text")
	require.NoError(t, err)
	assert.True(t, analysis.Unavailable)
	assert.Equal(t, "neutral", analysis.Sentiment)
}

func TestAnalyzeTextFallsBackWhenUnconfigured(t *testing.T) {
	analysis, err := New("").AnalyzeText(context.Background(), "some text")
	require.NoError(t, err)
	assert.True(t, analysis.Unavailable)
}

func TestAnalyzeTextFallsBackOnBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	analysis, err := New(srv.URL).AnalyzeText(context.Background(), "some text")
	require.NoError(t, err)
	assert.True(t, analysis.Unavailable)
}
