package unsplash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/source"
)

const (
	SourceID = "unsplash"

	defaultBaseURL          = "https://api.unsplash.com"
	defaultQuery            = "nature"
	defaultTimeout          = 30 * time.Second
	defaultMaxDownloadBytes = 20 << 20

	randomPhotosPath = "/photos/random"
	unknownAuthor    = "Unknown"
)

// Config holds configuration for the Unsplash client.
type Config struct {
	AccessKey        string
	BaseURL          string
	Query            string
	Timeout          time.Duration
	MaxDownloadBytes int64
	UserAgent        string
}

// Client implements source.Fetcher against the Unsplash random-photo API.
type Client struct {
	client           *resty.Client
	accessKey        string
	query            string
	maxDownloadBytes int64
}

// NewClient creates a new Unsplash client. Missing optional values fall back
// to defaults; a missing access key is reported on first use, not here.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	query := cfg.Query
	if query == "" {
		query = defaultQuery
	}
	maxBytes := cfg.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept-Version", "v1")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		client:           client,
		accessKey:        cfg.AccessKey,
		query:            query,
		maxDownloadBytes: maxBytes,
	}
}

// GetSourceID returns the unique identifier for this provider.
func (c *Client) GetSourceID() string {
	return SourceID
}

// apiPhoto is the subset of the Unsplash photo object we use.
type apiPhoto struct {
	ID   string `json:"id"`
	URLs struct {
		Regular string `json:"regular"`
	} `json:"urls"`
	User struct {
		Name  *string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
}

type apiErrors struct {
	Errors []string `json:"errors"`
}

// FetchCandidates requests batchSize random photos matching the configured query.
// Items that cannot be decoded or lack an id are dropped; the rest keep
// provider order.
func (c *Client) FetchCandidates(ctx context.Context, batchSize int) ([]source.Candidate, error) {
	if c.accessKey == "" {
		return nil, source.NewFetchError(source.KindConfig, "fetch", errors.New("UNSPLASH_ACCESS_KEY not set"))
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"count":     strconv.Itoa(batchSize),
			"query":     c.query,
			"client_id": c.accessKey,
		}).
		Get(randomPhotosPath)
	if err != nil {
		return nil, source.NewFetchError(source.KindNetwork, "fetch", fmt.Errorf("failed to call Unsplash API: %w", err))
	}

	if !resp.IsSuccess() {
		return nil, source.NewFetchError(source.KindNetwork, "fetch", fmt.Errorf("Unsplash API returned error: %s", describeStatus(resp)))
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, source.NewFetchError(source.KindMalformed, "fetch", fmt.Errorf("failed to decode photo list: %w", err))
	}

	candidates := make([]source.Candidate, 0, len(raw))
	dropped := 0
	for i, item := range raw {
		cand, err := decodeCandidate(item)
		if err != nil {
			dropped++
			logger.FromContext(ctx).WithError(err).WithField("index", i).Warn("Skipping malformed photo")
			continue
		}
		candidates = append(candidates, cand)
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(candidates),
		"dropped":              dropped,
	}).Info(ctx, "Fetched candidate batch")

	return candidates, nil
}

func decodeCandidate(item json.RawMessage) (source.Candidate, error) {
	var p apiPhoto
	if err := json.Unmarshal(item, &p); err != nil {
		return source.Candidate{}, source.NewFetchError(source.KindMalformed, "fetch", err)
	}
	if p.ID == "" {
		return source.Candidate{}, source.NewFetchError(source.KindMalformed, "fetch", errors.New("photo has no id"))
	}

	name := unknownAuthor
	if p.User.Name != nil && *p.User.Name != "" {
		name = *p.User.Name
	}

	return source.Candidate{
		ID:           p.ID,
		DownloadURL:  p.URLs.Regular,
		Photographer: name,
		ProfileURL:   p.User.Links.HTML,
	}, nil
}

// Download fetches the payload at url, refusing bodies larger than the
// configured cap.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, source.NewFetchError(source.KindNetwork, "download", fmt.Errorf("failed to download %s: %w", url, err))
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, source.NewFetchError(source.KindNetwork, "download", fmt.Errorf("download returned HTTP %d", resp.StatusCode()))
	}

	data, err := io.ReadAll(io.LimitReader(body, c.maxDownloadBytes+1))
	if err != nil {
		return nil, source.NewFetchError(source.KindNetwork, "download", fmt.Errorf("failed to read body: %w", err))
	}
	if int64(len(data)) > c.maxDownloadBytes {
		return nil, source.NewFetchError(source.KindMalformed, "download", fmt.Errorf("payload exceeds %d bytes", c.maxDownloadBytes))
	}
	if len(data) == 0 {
		return nil, source.NewFetchError(source.KindMalformed, "download", errors.New("empty payload"))
	}

	return data, nil
}

func describeStatus(resp *resty.Response) string {
	var apiErr apiErrors
	body := bytes.TrimSpace(resp.Body())
	if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), apiErr.Errors[0])
	}
	if len(body) > 0 {
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), string(body))
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode())
}
