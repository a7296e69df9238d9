package openaiapi_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/adapter/openaiapi"
	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const completionBody = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "mistral-small-latest",
  "choices": [
    {
      "index": 0,
      "message": {"role": "assistant", "content": "{\"summary\":\"ok\"}"},
      "finish_reason": "stop"
    }
  ]
}`

func newGenerator(t *testing.T, serverURL string) *openaiapi.Generator {
	t.Helper()
	gen, err := openaiapi.NewGenerator("test-key", serverURL, "mistral-small-latest", 5, nil, discardLogger())
	assert.NoError(t, err)
	return gen
}

func TestGenerator_RequiresAPIKey(t *testing.T) {
	_, err := openaiapi.NewGenerator("", "", "model", 5, nil, discardLogger())
	assert.ErrorIs(t, err, openaiapi.ErrAPIKeyNotSet)
}

func TestGenerator_Success(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	out, err := gen.Generate(context.Background(), []domain.LLMMessage{
		{Role: "system", Content: "instructions"},
		{Role: "user", Content: "query"},
	})
	assert.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerator_AuthFailureNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"authentication_error"}}`))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	_, err := gen.Generate(context.Background(), []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindGenerationAuthError, domain.KindOf(err))
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerator_BadRequestNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	_, err := gen.Generate(context.Background(), []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerator_TransientFailureRetriedThreeTimes(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"service_unavailable"}}`))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	_, err := gen.Generate(context.Background(), []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindGenerationUnavailable, domain.KindOf(err))
	assert.Equal(t, int32(3), requests.Load())
}

func TestGenerator_RecoversOnRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"transient","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	out, err := gen.Generate(context.Background(), []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGenerator_ParentDeadlineBecomesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindGenerationTimeout, domain.KindOf(err))
}

func TestGenerator_ParentDeadlineDuringBackoffBecomesTimeout(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"service_unavailable"}}`))
	}))
	defer server.Close()

	gen := newGenerator(t, server.URL)
	// The first attempt fails fast; the deadline then fires during the
	// 500ms backoff before attempt two.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindGenerationTimeout, domain.KindOf(err))
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerator_AttemptTimeoutsExhaustRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Drain the body so the server can observe the client disconnect;
		// with unread body bytes pending, r.Context() would never fire and
		// server.Close() would deadlock.
		_, _ = io.Copy(io.Discard, r.Body)
		// Hold the request open until the per-attempt deadline cancels it.
		<-r.Context().Done()
	}))
	defer server.Close()

	gen, err := openaiapi.NewGenerator("test-key", server.URL, "mistral-small-latest", 1, nil, discardLogger())
	assert.NoError(t, err)

	_, err = gen.Generate(context.Background(), []domain.LLMMessage{{Role: "user", Content: "query"}})
	assert.Error(t, err)
	assert.Equal(t, domain.KindGenerationUnavailable, domain.KindOf(err))
	assert.Equal(t, int32(3), requests.Load())
}

func TestGenerator_Version(t *testing.T) {
	gen := newGenerator(t, "http://localhost:1")
	assert.Equal(t, "mistral-small-latest", gen.Version())
}
