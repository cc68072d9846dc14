package tvapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_client"
)

func newTestProvider(srv *httptest.Server) *HTTPProvider {
	cli := &http_client.InstrumentedClient{
		Name:    "test",
		BaseURL: srv.URL,
		Client:  srv.Client(),
	}
	return NewHTTPProvider(cli, "", "")
}

func TestPerformOperation(t *testing.T) {
	var gotReq accessRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/access" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accessResponse{Status: "success", Detail: "access extended"})
	}))
	defer srv.Close()

	res, err := newTestProvider(srv).PerformOperation(context.Background(), "alice", "PUB;123", "7D")
	if err != nil {
		t.Fatalf("perform operation: %v", err)
	}
	if res.Status != StatusSuccess || res.Detail != "access extended" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotReq.Username != "alice" || gotReq.PineID != "PUB;123" || gotReq.Duration != "7D" {
		t.Fatalf("request body %+v", gotReq)
	}
}

func TestPerformOperationSoftStatuses(t *testing.T) {
	status := "failure"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accessResponse{Status: status, Detail: "denied"})
	}))
	defer srv.Close()
	p := newTestProvider(srv)

	res, err := p.PerformOperation(context.Background(), "alice", "t1", "7D")
	if err != nil {
		t.Fatalf("soft failure must not be an error: %v", err)
	}
	if res.Status != StatusFailure {
		t.Fatalf("expected failure status, got %v", res.Status)
	}

	status = "not_applicable"
	res, err = p.PerformOperation(context.Background(), "alice", "t1", "7D")
	if err != nil {
		t.Fatalf("not_applicable must not be an error: %v", err)
	}
	if res.Status != StatusNotApplicable {
		t.Fatalf("expected not_applicable, got %v", res.Status)
	}
}

func TestPerformOperationUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accessResponse{Status: "partial"})
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv).PerformOperation(context.Background(), "alice", "t1", "7D"); err == nil {
		t.Fatalf("unknown status must surface as error")
	}
}

func TestPerformOperationGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv).PerformOperation(context.Background(), "alice", "t1", "7D"); err == nil {
		t.Fatalf("5xx must surface as error")
	}
}

func TestSubjectExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/alice":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(userResponse{Exists: true})
		case "/api/users/ghost":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	p := newTestProvider(srv)

	exists, err := p.SubjectExists(context.Background(), "alice")
	if err != nil || !exists {
		t.Fatalf("alice: exists=%v err=%v", exists, err)
	}

	// 404 is a definite "no", not a lookup failure
	exists, err = p.SubjectExists(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("ghost: %v", err)
	}
	if exists {
		t.Fatalf("ghost should not exist")
	}

	if _, err = p.SubjectExists(context.Background(), "broken"); err == nil {
		t.Fatalf("5xx lookup must be an error")
	}
}

func TestSubjectExistsEscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userResponse{Exists: true})
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv).SubjectExists(context.Background(), "weird user"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gotPath != "/api/users/weird%20user" {
		t.Fatalf("path not escaped: %s", gotPath)
	}
}
