package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "codearena/pkg/errors"
)

func TestSubmitBatchReturnsTokensInOrder(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Query().Get("base64_encoded") != "false" {
			t.Errorf("base64_encoded = %q, want false", r.URL.Query().Get("base64_encoded"))
		}

		var req struct {
			Submissions []BatchItem `json:"submissions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Submissions) != 3 {
			t.Errorf("got %d submissions, want 3", len(req.Submissions))
		}

		items := make([]map[string]string, 0, len(req.Submissions))
		for i := range req.Submissions {
			items = append(items, map[string]string{"token": fmt.Sprintf("tok-%d", i)})
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	items := []BatchItem{
		{SourceCode: "a", LanguageID: 54, Stdin: "1"},
		{SourceCode: "a", LanguageID: 54, Stdin: "2"},
		{SourceCode: "a", LanguageID: 54, Stdin: "3"},
	}
	tokens, err := client.SubmitBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if gotPath != "/submissions/batch" {
		t.Fatalf("path = %q", gotPath)
	}
	want := []string{"tok-0", "tok-1", "tok-2"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestSubmitBatchBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	_, err = client.SubmitBatch(context.Background(), []BatchItem{{SourceCode: "x", LanguageID: 54}})
	if !pkgerrors.Is(err, pkgerrors.JudgeUnavailable) {
		t.Fatalf("err = %v, want JudgeUnavailable", err)
	}
}

func TestSubmitBatchEmpty(t *testing.T) {
	client, err := NewHTTPClient(ClientOptions{BaseURL: "http://judge.invalid"})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	_, err = client.SubmitBatch(context.Background(), nil)
	if !pkgerrors.Is(err, pkgerrors.InvalidParams) {
		t.Fatalf("err = %v, want InvalidParams", err)
	}
}

func TestAwaitResultsPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Query().Get("tokens") != "a,b" {
			t.Errorf("tokens = %q, want a,b", r.URL.Query().Get("tokens"))
		}
		statusB := statusProcessing
		if n >= 3 {
			statusB = StatusMatched
		}
		resp := batchResultsResponse{Submissions: []Result{
			{Token: "a", Status: Status{ID: StatusMatched}, Time: "0.001", Memory: 100},
			{Token: "b", Status: Status{ID: statusB}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	results, err := client.AwaitResults(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("AwaitResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("backend called %d times, want 3", got)
	}
}

func TestAwaitResultsTimeout(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := batchResultsResponse{Submissions: []Result{
			{Token: "a", Status: Status{ID: statusInQueue}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{
		BaseURL:      server.URL,
		PollAttempts: 10,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	_, err = client.AwaitResults(context.Background(), []string{"a"})
	if !pkgerrors.Is(err, pkgerrors.JudgeTimeout) {
		t.Fatalf("err = %v, want JudgeTimeout", err)
	}
	if got := calls.Load(); got != 10 {
		t.Fatalf("backend called %d times, want exactly 10", got)
	}
}

func TestAwaitResultsRejectsShortBatch(t *testing.T) {
	cases := []struct {
		name    string
		results []Result
	}{
		{"empty response", nil},
		{"missing case", []Result{
			{Token: "a", Status: Status{ID: StatusMatched}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(batchResultsResponse{Submissions: tc.results})
			}))
			defer server.Close()

			client, err := NewHTTPClient(ClientOptions{
				BaseURL:      server.URL,
				PollInterval: time.Millisecond,
			})
			if err != nil {
				t.Fatalf("NewHTTPClient: %v", err)
			}

			// A backend that drops cases must fail the wait, never hand
			// back a partial batch with no error.
			_, err = client.AwaitResults(context.Background(), []string{"a", "b"})
			if !pkgerrors.Is(err, pkgerrors.JudgeUnavailable) {
				t.Fatalf("err = %v, want JudgeUnavailable", err)
			}
		})
	}
}

func TestAwaitResultsContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := batchResultsResponse{Submissions: []Result{
			{Token: "a", Status: Status{ID: statusInQueue}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{
		BaseURL:      server.URL,
		PollInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.AwaitResults(ctx, []string{"a"})
	if !pkgerrors.Is(err, pkgerrors.JudgeTimeout) {
		t.Fatalf("err = %v, want JudgeTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancelation took %v", elapsed)
	}
}

func TestAwaitResultsSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Auth-Token"); got != "secret" {
			t.Errorf("X-Auth-Token = %q, want secret", got)
		}
		resp := batchResultsResponse{Submissions: []Result{
			{Token: "a", Status: Status{ID: StatusMatched}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewHTTPClient(ClientOptions{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if _, err := client.AwaitResults(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("AwaitResults: %v", err)
	}
}
