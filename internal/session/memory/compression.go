package memory

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip, deflate"

// decompressingTransport advertises br, gzip and deflate and decodes the
// response body, so the loader sees the same bytes a browser would.
type decompressingTransport struct {
	base http.RoundTripper
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (t *decompressingTransport) CloseIdleConnections() {
	if c, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

// decodeBody unwraps every Content-Encoding layer, last applied first.
func decodeBody(resp *http.Response) error {
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 || resp.Body == nil {
		return nil
	}
	// A single header may list several codings: "deflate, gzip".
	var layers []string
	for _, v := range encodings {
		for _, e := range strings.Split(v, ",") {
			layers = append(layers, strings.ToLower(strings.TrimSpace(e)))
		}
	}

	for i := len(layers) - 1; i >= 0; i-- {
		var (
			dec io.ReadCloser
			err error
		)
		switch layers[i] {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			dec, err = gzip.NewReader(resp.Body)
		case "br":
			dec = io.NopCloser(brotli.NewReader(resp.Body))
		case "deflate":
			dec, err = newDeflateReader(resp.Body)
		default:
			return fmt.Errorf("unsupported Content-Encoding %q", layers[i])
		}
		if err != nil {
			return fmt.Errorf("%s decoding: %w", layers[i], err)
		}
		resp.Body = &layeredBody{ReadCloser: dec, under: resp.Body}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// newDeflateReader accepts both zlib-wrapped (RFC 1950) and raw (RFC 1951)
// deflate streams; servers send either under the same name.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(header) == 2 && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// layeredBody closes a decoder together with the stream beneath it.
type layeredBody struct {
	io.ReadCloser
	under io.ReadCloser
}

func (b *layeredBody) Close() error {
	return errors.Join(b.ReadCloser.Close(), b.under.Close())
}
