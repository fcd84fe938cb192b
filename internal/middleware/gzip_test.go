package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"echo":"` + string(body) + `"}`))
}

func gzipBody(t *testing.T, s string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name             string
		body             string
		compressRequest  bool
		acceptEncoding   string
		wantEncoding     string
		wantBodyContains string
	}{
		{
			name:             "plain request, client accepts gzip",
			body:             "hello",
			acceptEncoding:   "gzip",
			wantEncoding:     "gzip",
			wantBodyContains: `{"echo":"hello"}`,
		},
		{
			name:             "plain request, client without gzip",
			body:             "hello",
			acceptEncoding:   "",
			wantEncoding:     "",
			wantBodyContains: `{"echo":"hello"}`,
		},
		{
			name:             "compressed request body",
			body:             "compressed",
			compressRequest:  true,
			acceptEncoding:   "gzip",
			wantEncoding:     "gzip",
			wantBodyContains: `{"echo":"compressed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.compressRequest {
				body = gzipBody(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/", body)
			if tt.compressRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding = %q, want %q", ce, tt.wantEncoding)
			}

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(string(got), tt.wantBodyContains) {
				t.Fatalf("body %q does not contain %q", string(got), tt.wantBodyContains)
			}
		})
	}
}

func TestGzipMiddleware_BadCompressedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
