package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BaSui01/agentflow/errs"
)

// HTTPClient calls a remote retrieval service over HTTP, POST
// /v1/retrieve?domain=...&division=...&k=...&method=..., proposal content
// carried in the JSON request body since it can be arbitrarily long.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient builds an HTTPClient bound to baseURL with the given
// per-call timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type retrieveRequestBody struct {
	ProposalContent string `json:"proposal_content"`
}

type retrieveResponseBody struct {
	Records []Record `json:"records"`
}

// Retrieve implements Client.
func (c *HTTPClient) Retrieve(ctx context.Context, query Query) ([]Record, error) {
	q := url.Values{}
	q.Set("domain", query.Domain)
	q.Set("division", query.Division)
	q.Set("k", strconv.Itoa(query.K))
	q.Set("method", string(query.Method))

	reqURL := c.baseURL + "/v1/retrieve?" + q.Encode()
	body, err := json.Marshal(retrieveRequestBody{ProposalContent: query.ProposalContent})
	if err != nil {
		return nil, errs.New(errs.ErrRetrievalFailed, "marshal retrieval request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.ErrRetrievalFailed, "build retrieval request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.New(errs.ErrRetrievalFailed, "retrieval request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.ErrRetrievalFailed, fmt.Sprintf("retrieval upstream status %d", resp.StatusCode))
	}

	var parsed retrieveResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.New(errs.ErrRetrievalFailed, "unmarshal retrieval response").WithCause(err)
	}

	if query.K > 0 && len(parsed.Records) > query.K {
		parsed.Records = parsed.Records[:query.K]
	}
	return parsed.Records, nil
}
