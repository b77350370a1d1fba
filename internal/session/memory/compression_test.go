package memory_test

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/souper/internal/session/memory"
)

const compressedPage = `<html><body><p id="t">Compressed listing</p></body></html>`

func encode(t *testing.T, coding string, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch coding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "raw-deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	default:
		t.Fatalf("unknown coding %q", coding)
	}
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestHTTPLoaderDecodesCompressedBodies(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   func(t *testing.T) []byte
	}{
		{"gzip", "gzip", func(t *testing.T) []byte { return encode(t, "gzip", []byte(compressedPage)) }},
		{"brotli", "br", func(t *testing.T) []byte { return encode(t, "br", []byte(compressedPage)) }},
		{"zlib deflate", "deflate", func(t *testing.T) []byte { return encode(t, "deflate", []byte(compressedPage)) }},
		{"raw deflate", "deflate", func(t *testing.T) []byte { return encode(t, "raw-deflate", []byte(compressedPage)) }},
		{"layered", "gzip, br", func(t *testing.T) []byte {
			return encode(t, "br", encode(t, "gzip", []byte(compressedPage)))
		}},
		{"identity", "identity", func(t *testing.T) []byte { return []byte(compressedPage) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "br, gzip, deflate", r.Header.Get("Accept-Encoding"))
				w.Header().Set("Content-Type", "text/html")
				w.Header().Set("Content-Encoding", tt.header)
				_, _ = w.Write(body)
			}))
			defer srv.Close()

			loader, err := memory.NewHTTPLoader(memory.HTTPOptions{}, zaptest.NewLogger(t))
			require.NoError(t, err)
			d := memory.New(loader, zaptest.NewLogger(t))
			defer d.Close(context.Background())

			require.NoError(t, d.Navigate(context.Background(), srv.URL+"/"))
			text, err := d.Text(context.Background(), resolve(t, d, "t"))
			require.NoError(t, err)
			assert.Equal(t, "Compressed listing", text)
		})
	}
}

func TestHTTPLoaderRejectsUnknownEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte("\x28\xb5\x2f\xfd"))
	}))
	defer srv.Close()

	loader, err := memory.NewHTTPLoader(memory.HTTPOptions{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer loader.CloseIdleConnections()

	_, err = loader.Load(context.Background(), memory.Request{URL: mustURL(t, srv.URL+"/")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported Content-Encoding "zstd"`)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
