package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/codeweaver/core/internal/coreerr"
)

// HTTPTransportConfig matches §5's connection-pool resource limits for
// the shared embedding-provider HTTP client.
type HTTPTransportConfig struct {
	MaxIdleConns        int           // default 100
	MaxIdleConnsPerHost int           // default 20
	IdleConnTimeout     time.Duration // default 5s
}

// DefaultHTTPTransportConfig matches §5's stated defaults.
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{MaxIdleConns: 100, MaxIdleConnsPerHost: 20, IdleConnTimeout: 5 * time.Second}
}

// NewHTTPClient builds the shared *http.Client every HTTPProvider and the
// vector store's own HTTP-backed calls use, tuned per §5's
// "in-flight HTTP connections default 100, keepalive 20, keepalive expiry 5s".
func NewHTTPClient(cfg HTTPTransportConfig) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		},
		Timeout: 60 * time.Second, // matches §5's per-embedding-batch timeout
	}
}

// HTTPProvider is a generic REST dense-embedding provider: POST a JSON
// {input, model, input_type} body, expect back {data: [{embedding: []}]}.
// This shape matches the OpenAI/Voyage/Cohere embeddings API family named
// in §6's recognized provider credentials; the concrete provider (and its
// API key, taken from one of those environment variables) is selected by
// the external config layer and passed in here as plain fields, since
// credential *resolution* is out of this module's scope (§1).
type HTTPProvider struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	model     string
	dims      int
	name      string
	authFailed atomic.Bool
}

// NewHTTPProvider builds an HTTPProvider bound to endpoint, authenticating
// with apiKey via a Bearer header.
func NewHTTPProvider(client *http.Client, name, endpoint, apiKey, model string, dims int) *HTTPProvider {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTransportConfig())
	}
	return &HTTPProvider{client: client, endpoint: endpoint, apiKey: apiKey, model: model, dims: dims, name: name}
}

type httpEmbedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type httpEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) Embed(ctx context.Context, texts []string, mode Mode) ([]Vector, error) {
	inputType := "document"
	if mode == ModeQuery {
		inputType = "query"
	}
	body, err := json.Marshal(httpEmbedRequest{Input: texts, Model: p.model, InputType: inputType})
	if err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http.marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http.request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, coreerr.NewRetriable(coreerr.KindProvider, "embedding.http.do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		p.authFailed.Store(true)
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http.auth", fmt.Errorf("provider %s: auth rejected (status %d)", p.name, resp.StatusCode))
	}
	if isRetriableStatus(resp.StatusCode) {
		return nil, coreerr.NewRetriable(coreerr.KindProvider, "embedding.http.status", fmt.Errorf("provider %s: status %d", p.name, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http.status", fmt.Errorf("provider %s: status %d", p.name, resp.StatusCode))
	}

	var parsed httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http.decode", err)
	}

	out := make([]Vector, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = Vector(d.Embedding)
	}
	return out, nil
}

func (p *HTTPProvider) Dimensions() int { return p.dims }
func (p *HTTPProvider) Name() string    { return p.name }
func (p *HTTPProvider) Model() string   { return p.model }
func (p *HTTPProvider) Healthy() bool   { return !p.authFailed.Load() }

// isRetriableStatus matches §7's retriable subset: 5xx, 429.
func isRetriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// HTTPSparseProvider is an HTTPProvider's sparse-embedding twin: same
// REST shape, but the response carries term-id/weight pairs instead of
// a dense float array, for remote BM25-class or learned-sparse
// providers that aren't the in-process bleve-backed "bm25" default.
type HTTPSparseProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
	name     string
	authFailed atomic.Bool
}

// NewHTTPSparseProvider builds an HTTPSparseProvider bound to endpoint.
func NewHTTPSparseProvider(client *http.Client, name, endpoint, apiKey, model string) *HTTPSparseProvider {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTransportConfig())
	}
	return &HTTPSparseProvider{client: client, endpoint: endpoint, apiKey: apiKey, model: model, name: name}
}

type httpSparseEmbedResponse struct {
	Data []struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"data"`
}

func (p *HTTPSparseProvider) Embed(ctx context.Context, texts []string, mode Mode) ([]SparseVector, error) {
	inputType := "document"
	if mode == ModeQuery {
		inputType = "query"
	}
	body, err := json.Marshal(httpEmbedRequest{Input: texts, Model: p.model, InputType: inputType})
	if err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http_sparse.marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http_sparse.request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, coreerr.NewRetriable(coreerr.KindProvider, "embedding.http_sparse.do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		p.authFailed.Store(true)
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http_sparse.auth", fmt.Errorf("provider %s: auth rejected (status %d)", p.name, resp.StatusCode))
	}
	if isRetriableStatus(resp.StatusCode) {
		return nil, coreerr.NewRetriable(coreerr.KindProvider, "embedding.http_sparse.status", fmt.Errorf("provider %s: status %d", p.name, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http_sparse.status", fmt.Errorf("provider %s: status %d", p.name, resp.StatusCode))
	}

	var parsed httpSparseEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, coreerr.New(coreerr.KindProvider, "embedding.http_sparse.decode", err)
	}

	out := make([]SparseVector, len(parsed.Data))
	for i, d := range parsed.Data {
		sv := make(SparseVector, len(d.Indices))
		for j, idx := range d.Indices {
			if j < len(d.Values) {
				sv[idx] = d.Values[j]
			}
		}
		out[i] = sv
	}
	return out, nil
}

func (p *HTTPSparseProvider) Name() string  { return p.name }
func (p *HTTPSparseProvider) Healthy() bool { return !p.authFailed.Load() }
