// Package scoreapi is the typed HTTP client for the score-analysis REST
// backend. Every endpoint returns either a concrete result struct or an
// *Error whose Kind distinguishes timeout, network failure and backend
// rejection; callers never inspect raw response maps.
package scoreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/score-analyzer/webapp/internal/models"
)

// Client talks to the upstream backend. Upload and analyze carry independent
// timeouts: analyze runs a per-student AI pass and routinely takes minutes.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	uploadTimeout  time.Duration
	analyzeTimeout time.Duration
	readTimeout    time.Duration
}

// NewClient creates a backend client. token may be empty for unauthenticated
// deployments.
func NewClient(baseURL, token string, uploadTimeout, analyzeTimeout, readTimeout time.Duration) *Client {
	return &Client{
		baseURL:        baseURL,
		token:          token,
		httpClient:     &http.Client{},
		uploadTimeout:  uploadTimeout,
		analyzeTimeout: analyzeTimeout,
		readTimeout:    readTimeout,
	}
}

// envelope is the common response wrapper used by the backend.
type envelope struct {
	Success          bool                  `json:"success"`
	Message          string                `json:"message"`
	Data             []models.StudentScore `json:"data"`
	OriginalFilename string                `json:"original_filename"`
	ProcessingInfo   *processingInfo       `json:"processing_info"`
}

type processingInfo struct {
	FileID         int64 `json:"file_id"`
	StudentCount   int   `json:"student_count"`
	QuotaCost      int   `json:"quota_cost"`
	QuotaRemaining *int  `json:"quota_remaining"`
}

// UploadResult is a successful parse of an uploaded spreadsheet. Scores are
// unanalyzed rows.
type UploadResult struct {
	FileID           int64
	OriginalFilename string
	Scores           []models.StudentScore
	StudentCount     int
	QuotaCost        int
}

// AnalyzeResult is a completed AI analysis. QuotaRemaining is only meaningful
// when HasRemaining is set (VIP accounts are not debited).
type AnalyzeResult struct {
	Scores         []models.StudentScore
	StudentCount   int
	QuotaCost      int
	QuotaRemaining int
	HasRemaining   bool
}

// QuotaBalance is the account collaborator's upstream view.
type QuotaBalance struct {
	Balance int  `json:"balance"`
	IsVIP   bool `json:"is_vip"`
}

// Upload sends a spreadsheet to POST /api/upload and returns the parsed,
// unanalyzed rows.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Message: "building multipart body", Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "reading upload content", Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "building multipart body", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	env, status, err := c.doEnvelope(req)
	if err != nil {
		return nil, err
	}
	if env.ProcessingInfo == nil || env.ProcessingInfo.FileID == 0 {
		return nil, &Error{Kind: KindDecode, Message: "upload response missing file_id", Status: status}
	}

	return &UploadResult{
		FileID:           env.ProcessingInfo.FileID,
		OriginalFilename: env.OriginalFilename,
		Scores:           env.Data,
		StudentCount:     env.ProcessingInfo.StudentCount,
		QuotaCost:        env.ProcessingInfo.QuotaCost,
	}, nil
}

// Analyze runs the AI step on an already-parsed file via
// POST /api/files/{file_id}/analyze.
func (c *Client) Analyze(ctx context.Context, fileID int64, oneShotText string) (*AnalyzeResult, error) {
	payload, err := json.Marshal(map[string]string{"one_shot_text": oneShotText})
	if err != nil {
		return nil, &Error{Kind: KindDecode, Message: "encoding analyze request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/files/%d/analyze", c.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	env, _, err := c.doEnvelope(req)
	if err != nil {
		return nil, err
	}

	result := &AnalyzeResult{Scores: env.Data}
	if info := env.ProcessingInfo; info != nil {
		result.StudentCount = info.StudentCount
		result.QuotaCost = info.QuotaCost
		if info.QuotaRemaining != nil {
			result.QuotaRemaining = *info.QuotaRemaining
			result.HasRemaining = true
		}
	}
	return result, nil
}

// Export renders scores via POST /api/export/{format} and returns the binary
// document plus its content type.
func (c *Client) Export(ctx context.Context, format string, scores []models.StudentScore, originalFilename string) ([]byte, string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"scores":            scores,
		"original_filename": originalFilename,
	})
	if err != nil {
		return nil, "", &Error{Kind: KindDecode, Message: "encoding export request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/export/"+format, bytes.NewReader(payload))
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", rejectionFromResponse(resp)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Kind: KindNetwork, Message: "reading export body", Err: err}
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

// QuotaBalance reads the account's current balance via GET /api/quota/balance.
func (c *Client) QuotaBalance(ctx context.Context) (*QuotaBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/quota/balance", nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "building request", Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var balance QuotaBalance
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "decoding quota balance", Err: err}
	}
	return &balance, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// do executes a request and normalizes transport and HTTP-level failures.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, rejectionFromResponse(resp)
	}
	return resp, nil
}

// doEnvelope executes a request expecting the standard envelope and maps
// success=false to a rejection carrying the backend's message verbatim.
func (c *Client) doEnvelope(req *http.Request) (*envelope, int, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, &Error{Kind: KindDecode, Message: "decoding backend response", Status: resp.StatusCode, Err: err}
	}
	if !env.Success {
		return nil, resp.StatusCode, &Error{Kind: KindRejected, Message: env.Message, Status: resp.StatusCode}
	}
	return &env, resp.StatusCode, nil
}

// rejectionFromResponse extracts a structured error payload from a non-200
// response. The backend uses either {message} or FastAPI-style {detail}.
func rejectionFromResponse(resp *http.Response) *Error {
	apiErr := &Error{Kind: KindRejected, Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else if payload.Detail != "" {
			apiErr.Message = payload.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}
	return apiErr
}
