package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClients_ImplementClient(t *testing.T) {
	var _ Client = (*HTTPClient)(nil)
	var _ Client = (*StubClient)(nil)
}

func TestHTTPClient_Retrieve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "manufacturing", r.URL.Query().Get("domain"))
		assert.Equal(t, "memory", r.URL.Query().Get("division"))
		assert.Equal(t, "5", r.URL.Query().Get("k"))
		assert.Equal(t, "rrf", r.URL.Query().Get("method"))

		var body retrieveRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "improve line throughput", body.ProposalContent)

		json.NewEncoder(w).Encode(retrieveResponseBody{
			Records: []Record{{Title: "case A"}, {Title: "case B"}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 5*time.Second)
	records, err := client.Retrieve(context.Background(), Query{
		Domain:          "manufacturing",
		Division:        "memory",
		ProposalContent: "improve line throughput",
		K:               5,
		Method:          MethodRRF,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "case A", records[0].Title)
}

func TestHTTPClient_Retrieve_TruncatesToK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(retrieveResponseBody{
			Records: []Record{{Title: "a"}, {Title: "b"}, {Title: "c"}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 5*time.Second)
	records, err := client.Retrieve(context.Background(), Query{K: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHTTPClient_Retrieve_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := client.Retrieve(context.Background(), Query{K: 5})
	assert.Error(t, err)
}

func TestStubClient_Retrieve_ReturnsFixedList(t *testing.T) {
	client := NewStubClient()
	records, err := client.Retrieve(context.Background(), Query{K: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestStubClient_Retrieve_RespectsK(t *testing.T) {
	client := NewStubClient()
	records, err := client.Retrieve(context.Background(), Query{K: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFallbackRecords_ReturnsACopy(t *testing.T) {
	a := FallbackRecords()
	a[0].Title = "mutated"
	b := FallbackRecords()
	assert.NotEqual(t, "mutated", b[0].Title)
}
