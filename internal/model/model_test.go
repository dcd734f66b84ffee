package model

import "testing"

func TestDefaultRequestName(t *testing.T) {
	tests := []struct {
		name   string
		method string
		rawURL string
		want   string
	}{
		{"path extracted", "GET", "https://api.example.com/users/42", "GET /users/42"},
		{"root path", "POST", "https://api.example.com/", "POST /"},
		{"no path falls back to url", "GET", "https://api.example.com", "GET https://api.example.com"},
		{"empty method defaults to GET", "", "https://api.example.com/items", "GET /items"},
		{"query ignored", "DELETE", "https://x.test/items?id=3", "DELETE /items"},
		{"unparseable url used verbatim", "GET", "://bad", "GET ://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRequestName(tt.method, tt.rawURL); got != tt.want {
				t.Errorf("DefaultRequestName(%q, %q) = %q, want %q", tt.method, tt.rawURL, got, tt.want)
			}
		})
	}
}
