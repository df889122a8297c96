package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hollowverse/releasemanager/internal/api"
	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/testutil"
)

func newOpsServer(t *testing.T) (*httptest.Server, *directory.Directory) {
	t.Helper()
	table := environments.MustWeightTable(
		environments.Weight{Name: "master", Weight: 3},
		environments.Weight{Name: "beta", Weight: 1},
	)
	dir, _ := testutil.NewDirectory(t, table, map[string]string{
		"master": "master.example.com",
		"beta":   "beta.example.com",
	})

	ts := httptest.NewServer(api.NewServer(dir, table).Router())
	t.Cleanup(ts.Close)
	return ts, dir
}

func TestGetEnvironments(t *testing.T) {
	ts, dir := newOpsServer(t)
	c := NewClient(ts.URL + "/")

	snap, err := c.GetEnvironments(context.Background(), "")
	if err != nil {
		t.Fatalf("GetEnvironments failed: %v", err)
	}
	if snap.ETag != dir.Snapshot().ETag {
		t.Errorf("Expected ETag %s, got %s", dir.Snapshot().ETag, snap.ETag)
	}
	if snap.Environments["master"] != "master.example.com" {
		t.Errorf("Unexpected environments %v", snap.Environments)
	}

	_, err = c.GetEnvironments(context.Background(), snap.ETag)
	if !errors.Is(err, ErrNotModified) {
		t.Errorf("Expected ErrNotModified, got %v", err)
	}
}

func TestGetEnvironment(t *testing.T) {
	ts, _ := newOpsServer(t)
	c := NewClient(ts.URL)

	env, err := c.GetEnvironment(context.Background(), "beta")
	if err != nil {
		t.Fatalf("GetEnvironment failed: %v", err)
	}
	if env.URL != "beta.example.com" || !env.Weighted || env.Share != 0.25 {
		t.Errorf("Unexpected environment %+v", env)
	}
}

func TestGetEnvironment_NotFound(t *testing.T) {
	ts, _ := newOpsServer(t)
	c := NewClient(ts.URL)

	_, err := c.GetEnvironment(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != api.ErrCodeNotFound {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}

func TestGetWeights(t *testing.T) {
	ts, _ := newOpsServer(t)
	c := NewClient(ts.URL)

	w, err := c.GetWeights(context.Background())
	if err != nil {
		t.Fatalf("GetWeights failed: %v", err)
	}
	if w.Default != "master" || len(w.Environments) != 2 {
		t.Errorf("Unexpected weights %+v", w)
	}
	if w.Environments[0].Share != 0.75 {
		t.Errorf("Expected master share 0.75, got %v", w.Environments[0].Share)
	}
}

func TestDecodeError_PlainBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetWeights(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "bad gateway" || apiErr.Code != "" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}
