package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore talks to a document-store service over JSON/HTTP.
//
// Document routes are {base}/{collection}/{docID}; queries hit
// {base}/{collection} with field=value query parameters. Writes use PATCH
// for merge semantics and PUT for replace. Any transport or 5xx failure maps
// to ErrUnavailable so callers treat it as "stay dirty, retry later".
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPStore(baseURL, apiKey string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) docURL(collection, docID string) string {
	return s.baseURL + "/" + url.PathEscape(collection) + "/" + url.PathEscape(docID)
}

func (s *HTTPStore) do(req *http.Request) (*http.Response, error) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (s *HTTPStore) Set(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	method := http.MethodPut
	if merge {
		method = http.MethodPatch
	}
	req, err := http.NewRequestWithContext(ctx, method, s.docURL(collection, docID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: set %s/%s: %s", ErrUnavailable, collection, docID, resp.Status)
	}
	return nil
}

func (s *HTTPStore) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.docURL(collection, docID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrDocNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: get %s/%s: %s", ErrUnavailable, collection, docID, resp.Status)
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (s *HTTPStore) Query(ctx context.Context, collection string, filters ...Filter) ([]map[string]any, error) {
	q := url.Values{}
	for _, f := range filters {
		q.Set(f.Field, fmt.Sprint(f.Value))
	}

	u := s.baseURL + "/" + url.PathEscape(collection)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: query %s: %s", ErrUnavailable, collection, resp.Status)
	}

	var docs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return docs, nil
}

func (s *HTTPStore) Delete(ctx context.Context, collection, docID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.docURL(collection, docID), nil)
	if err != nil {
		return err
	}

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete %s/%s: %s", ErrUnavailable, collection, docID, resp.Status)
	}
	return nil
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/ping", nil)
	if err != nil {
		return err
	}

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ping: %s", ErrUnavailable, resp.Status)
	}
	return nil
}
