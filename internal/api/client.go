package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string

	// PageFetchesPerSecond throttles page image requests. Zero disables the
	// limit.
	PageFetchesPerSecond float64
	PageFetchBurst       int

	HTTPClient *http.Client
	Logger     *zerolog.Logger // nil disables request logging
}

// Client talks to the statement-upload endpoints. It is safe for concurrent
// use. Requests carry no timeout; callers cancel through the context.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	log    zerolog.Logger
	pages  *rate.Limiter
	flight singleflight.Group
}

// New creates a Client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.PageFetchesPerSecond > 0 {
		burst := opts.PageFetchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.PageFetchesPerSecond), burst)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "api").Logger()
	}

	return &Client{
		base:  base,
		token: opts.Token,
		http:  hc,
		log:   log,
		pages: limiter,
	}, nil
}

func (c *Client) endpoint(parts ...string) *url.URL {
	rel := &url.URL{Path: "statement-uploads/" + strings.Join(parts, "/")}
	if len(parts) > 0 {
		rel.Path += "/"
	}
	return c.base.ResolveReference(rel)
}

// Upload sends the statement file at path and creates an extraction session.
func (c *Client) Upload(ctx context.Context, path, accountID string) (UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return UploadResponse{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return UploadResponse{}, fmt.Errorf("read statement: %w", err)
	}
	if accountID != "" {
		if err := mw.WriteField("account_id", accountID); err != nil {
			return UploadResponse{}, fmt.Errorf("write account_id: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("close multipart body: %w", err)
	}

	var resp UploadResponse
	err = c.do(ctx, http.MethodPost, c.endpoint(), mw.FormDataContentType(), &body, &resp)
	return resp, err
}

// Parse runs automatic extraction over the whole document.
func (c *Client) Parse(ctx context.Context, sessionID string, req ParseRequest) (ParseResponse, error) {
	var resp ParseResponse
	err := c.doJSON(ctx, http.MethodPost, c.endpoint(sessionID, "parse"), req, &resp)
	return resp, err
}

// ExtractTable extracts one table from a region of a page.
func (c *Client) ExtractTable(ctx context.Context, sessionID string, req ExtractTableRequest) (ExtractTableResponse, error) {
	var resp ExtractTableResponse
	err := c.doJSON(ctx, http.MethodPost, c.endpoint(sessionID, "extract_table"), req, &resp)
	return resp, err
}

// CheckDuplicates partitions the session's transactions against the account.
func (c *Client) CheckDuplicates(ctx context.Context, sessionID string) (DuplicateCheckResponse, error) {
	var resp DuplicateCheckResponse
	err := c.do(ctx, http.MethodGet, c.endpoint(sessionID, "check_duplicates"), "", nil, &resp)
	return resp, err
}

// SaveTransactions commits the chosen transactions.
func (c *Client) SaveTransactions(ctx context.Context, sessionID string, req SaveRequest) (SaveResponse, error) {
	var resp SaveResponse
	err := c.doJSON(ctx, http.MethodPost, c.endpoint(sessionID, "save_transactions"), req, &resp)
	return resp, err
}

// PDFPage fetches a rendered page image. Concurrent requests for the same
// page share one round trip. The shared fetch is not tied to any one
// caller's cancellation; a cancelled caller stops waiting and the others
// still get the page.
func (c *Client) PDFPage(ctx context.Context, sessionID string, page int, scale float64) (PageImage, error) {
	key := sessionID + "/" + strconv.Itoa(page) + "/" + strconv.FormatFloat(scale, 'f', -1, 64)
	ch := c.flight.DoChan(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		if err := c.pages.Wait(ctx); err != nil {
			return PageImage{}, fmt.Errorf("wait for page fetch slot: %w", err)
		}
		u := c.endpoint(sessionID, "get_pdf_page")
		q := u.Query()
		q.Set("page_number", strconv.Itoa(page))
		if scale > 0 {
			q.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))
		}
		u.RawQuery = q.Encode()

		var resp PageImage
		err := c.do(ctx, http.MethodGet, u, "", nil, &resp)
		return resp, err
	})
	select {
	case <-ctx.Done():
		return PageImage{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return PageImage{}, r.Err
		}
		return r.Val.(PageImage), nil
	}
}

func (c *Client) doJSON(ctx context.Context, method string, u *url.URL, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, method, u, "application/json", bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", u.Path).Str("request_id", reqID).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", reqID).
		Msg("api request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromBody(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
