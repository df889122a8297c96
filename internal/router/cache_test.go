package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRewriteCacheControl(t *testing.T) {
	tests := []struct {
		name     string
		rc       *Context
		existing []string
		want     []string
	}{
		{
			name: "no routing context",
			rc:   nil,
			want: nil,
		},
		{
			name:     "pinned session without branch",
			rc:       &Context{RequestedEnvironmentName: "master"},
			existing: []string{"public, max-age=60"},
			want:     []string{"public, max-age=60"},
		},
		{
			name: "fresh session without header",
			rc:   &Context{},
			want: []string{CDNNoCacheDirectives},
		},
		{
			name:     "fresh session with header",
			rc:       &Context{},
			existing: []string{"max-age=300"},
			want:     []string{"max-age=300, " + CDNNoCacheDirectives},
		},
		{
			name:     "branch keeps immutable",
			rc:       &Context{RequestedBranchName: "test", RequestedEnvironmentName: "master"},
			existing: []string{"public, max-age=2592000, immutable"},
			want:     []string{"public, max-age=2592000, immutable, " + CDNNoCacheDirectives},
		},
		{
			name:     "multiple values use the first",
			rc:       &Context{RequestedBranchName: "test"},
			existing: []string{"private", "no-transform"},
			want:     []string{"private, " + CDNNoCacheDirectives},
		},
		{
			name:     "empty value treated as missing",
			rc:       &Context{RequestedBranchName: "test"},
			existing: []string{""},
			want:     []string{CDNNoCacheDirectives},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.rc != nil {
				req = req.WithContext(withRouting(req.Context(), *tt.rc, Target{}))
			}
			h := http.Header{}
			for _, v := range tt.existing {
				h.Add("Cache-Control", v)
			}

			RewriteCacheControl(req, h)

			got := h.Values("Cache-Control")
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
