// client_test.go - Tests for the upstream backend client
package scoreapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/score-analyzer/webapp/internal/models"
)

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "test-token", 5*time.Second, 5*time.Second, 5*time.Second)
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing multipart file: %v", err)
		}
		defer file.Close()
		if header.Filename != "midterm.xlsx" {
			t.Errorf("expected filename midterm.xlsx, got %s", header.Filename)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"original_filename": "midterm.xlsx",
			"data": []models.StudentScore{
				{StudentName: "Alice", TotalScore: 92},
				{StudentName: "Bob", TotalScore: 85},
			},
			"processing_info": map[string]interface{}{
				"file_id":       int64(42),
				"student_count": 2,
				"quota_cost":    2,
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Upload(context.Background(), "midterm.xlsx", strings.NewReader("spreadsheet"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.FileID != 42 {
		t.Errorf("expected file id 42, got %d", result.FileID)
	}
	if result.StudentCount != 2 || len(result.Scores) != 2 {
		t.Errorf("expected 2 students, got count=%d rows=%d", result.StudentCount, len(result.Scores))
	}
	if result.OriginalFilename != "midterm.xlsx" {
		t.Errorf("unexpected original filename %s", result.OriginalFilename)
	}
}

func TestClient_UploadEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "file contains no score columns",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Upload(context.Background(), "midterm.xlsx", strings.NewReader("x"))
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := Message(err, ""); got != "file contains no score columns" {
		t.Errorf("expected backend message verbatim, got %q", got)
	}
}

func TestClient_UploadMissingFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    []models.StudentScore{{StudentName: "Alice"}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Upload(context.Background(), "midterm.xlsx", strings.NewReader("x"))
	var apiErr *Error
	if !asError(err, &apiErr) || apiErr.Kind != KindDecode {
		t.Fatalf("expected decode error for missing file_id, got %v", err)
	}
}

func TestClient_UploadHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message payload", http.StatusPaymentRequired, `{"message":"quota exhausted"}`, "quota exhausted"},
		{"detail payload", http.StatusUnauthorized, `{"detail":"invalid token"}`, "invalid token"},
		{"opaque body", http.StatusBadGateway, "boom", "backend returned status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Upload(context.Background(), "midterm.xlsx", strings.NewReader("x"))
			if !IsRejected(err) {
				t.Fatalf("expected rejection, got %v", err)
			}
			var apiErr *Error
			asError(err, &apiErr)
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, apiErr.Message)
			}
		})
	}
}

func TestClient_AnalyzeQuotaRemaining(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/42/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["one_shot_text"] != "be strict" {
			t.Errorf("expected one_shot_text forwarded, got %q", req["one_shot_text"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []models.StudentScore{
				{StudentName: "Alice", Analysis: "solid", Suggestions: []string{"keep going"}},
			},
			"processing_info": map[string]interface{}{
				"file_id":         int64(42),
				"student_count":   1,
				"quota_cost":      1,
				"quota_remaining": 99,
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Analyze(context.Background(), 42, "be strict")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.HasRemaining || result.QuotaRemaining != 99 {
		t.Errorf("expected remaining 99, got %d (has=%v)", result.QuotaRemaining, result.HasRemaining)
	}
	if !result.Scores[0].Analyzed() {
		t.Error("expected analyzed rows")
	}
}

func TestClient_AnalyzeVIPOmitsRemaining(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    []models.StudentScore{{StudentName: "Alice", Analysis: "solid"}},
			"processing_info": map[string]interface{}{
				"file_id":       int64(42),
				"student_count": 1,
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Analyze(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.HasRemaining {
		t.Error("expected no remaining value when the backend omits it")
	}
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(srv.URL, "", 50*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond)
	_, err := client.Analyze(context.Background(), 42, "")
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	// Nothing listens here.
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Upload(context.Background(), "midterm.xlsx", strings.NewReader("x"))
	var apiErr *Error
	if !asError(err, &apiErr) || apiErr.Kind != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestClient_Export(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/export/docx" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Scores           []models.StudentScore `json:"scores"`
			OriginalFilename string                `json:"original_filename"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Scores) != 1 || req.OriginalFilename != "midterm.xlsx" {
			t.Errorf("unexpected export payload %+v", req)
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Write([]byte("DOCX-BYTES"))
	}))
	defer srv.Close()

	blob, contentType, err := newTestClient(srv.URL).Export(context.Background(), "docx",
		[]models.StudentScore{{StudentName: "Alice"}}, "midterm.xlsx")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(blob) != "DOCX-BYTES" {
		t.Errorf("unexpected blob %q", blob)
	}
	if !strings.Contains(contentType, "wordprocessingml") {
		t.Errorf("unexpected content type %s", contentType)
	}
}

func TestClient_QuotaBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/quota/balance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(QuotaBalance{Balance: 73, IsVIP: true})
	}))
	defer srv.Close()

	balance, err := newTestClient(srv.URL).QuotaBalance(context.Background())
	if err != nil {
		t.Fatalf("QuotaBalance: %v", err)
	}
	if balance.Balance != 73 || !balance.IsVIP {
		t.Errorf("unexpected balance %+v", balance)
	}
}
