package llmgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClients_ImplementClient(t *testing.T) {
	var _ Client = (*HTTPClient)(nil)
	var _ Client = (*StubClient)(nil)
}

func TestHTTPClient_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, "review this proposal", req.Messages[0].Content)

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "looks solid"}}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "key", "gpt-test", 5*time.Second, nil)
	text, err := client.Complete(context.Background(), "review this proposal", Options{})
	require.NoError(t, err)
	assert.Equal(t, "looks solid", text)
}

func TestHTTPClient_Complete_RetriesOnceOnTransientFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "recovered"}}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "gpt-test", 5*time.Second, nil)
	text, err := client.Complete(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestHTTPClient_Complete_FatalErrorIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "gpt-test", 5*time.Second, nil)
	_, err := client.Complete(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestHTTPClient_Complete_GivesUpAfterOneRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "gpt-test", 5*time.Second, nil)
	_, err := client.Complete(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestStubClient_Complete_NeverFails(t *testing.T) {
	client := NewStubClient()
	text, err := client.Complete(context.Background(), "hello", Options{EnableSequentialThinking: true})
	require.NoError(t, err)
	assert.Contains(t, text, "stub completion")
}
