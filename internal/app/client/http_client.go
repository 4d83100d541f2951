package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"pharmasync/internal/app/client/engine"
	"pharmasync/internal/domain/entity"
)

const (
	userAgent         = "pharmasync-client/1.0"
	idempotencyHeader = "Idempotency-Key"
	healthPath        = "/api/health"
)

// HTTPClient работает с удаленным API сущностей.
type HTTPClient struct {
	client  *http.Client
	log     *slog.Logger
	baseURL string
	token   string
}

var (
	_ engine.Remote = (*HTTPClient)(nil)
	_ engine.Pinger = (*HTTPClient)(nil)
)

func NewHTTPClient(baseURL, token string, timeout time.Duration, log *slog.Logger) (*HTTPClient, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:     log.With("component", "http_client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}, nil
}

// Ping проверяет публичный эндпоинт health.
func (h *HTTPClient) Ping(ctx context.Context) error {
	resp, err := h.do(ctx, http.MethodGet, healthPath, nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *HTTPClient) List(ctx context.Context, t entity.Type) ([]entity.Record, error) {
	resp, err := h.do(ctx, http.MethodGet, t.Endpoint(), nil, nil)
	if err != nil {
		return nil, err
	}

	var list entity.ListResponse
	if err := h.parseResponse(resp, &list); err != nil {
		return nil, err
	}
	for i := range list.Records {
		list.Records[i].Type = t
	}
	return list.Records, nil
}

func (h *HTTPClient) Create(ctx context.Context, t entity.Type, payload entity.Payload, idempotencyKey string) (*entity.Record, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{idempotencyHeader: idempotencyKey}
	}

	resp, err := h.do(ctx, http.MethodPost, t.Endpoint(), entity.Request{Data: payload}, headers)
	if err != nil {
		return nil, err
	}
	return h.parseRecord(resp, t)
}

func (h *HTTPClient) Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.Record, error) {
	resp, err := h.do(ctx, http.MethodPut, t.Endpoint()+"/"+url.PathEscape(id), entity.Request{Data: payload}, nil)
	if err != nil {
		return nil, err
	}
	return h.parseRecord(resp, t)
}

func (h *HTTPClient) Delete(ctx context.Context, t entity.Type, id string) error {
	resp, err := h.do(ctx, http.MethodDelete, t.Endpoint()+"/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *HTTPClient) parseRecord(resp *http.Response, t entity.Type) (*entity.Record, error) {
	var rec entity.Record
	if err := h.parseResponse(resp, &rec); err != nil {
		return nil, err
	}
	rec.Type = t
	return &rec, nil
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	h.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", engine.ErrNetwork, method, path, err)
	}
	return resp, nil
}

// errorBody разбирает и ошибки huma, и простые тела {"error": "..."}.
type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Error  string `json:"error"`
	Errors []struct {
		Message  string `json:"message"`
		Location string `json:"location"`
	} `json:"errors"`
}

func (b errorBody) message() string {
	msg := b.Detail
	if msg == "" {
		msg = b.Title
	}
	if msg == "" {
		msg = b.Error
	}
	if len(b.Errors) > 0 {
		parts := make([]string, 0, len(b.Errors))
		for _, e := range b.Errors {
			if e.Location != "" {
				parts = append(parts, e.Location+": "+e.Message)
			} else {
				parts = append(parts, e.Message)
			}
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", engine.ErrNetwork, err)
	}

	h.log.Debug("received response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= http.StatusBadRequest {
		se := &engine.StatusError{StatusCode: resp.StatusCode}
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			se.Message = eb.message()
		}
		return se
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
