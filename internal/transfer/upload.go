package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/xerrors"
)

// UploadChunkSize is the size of every upload chunk but the last
const UploadChunkSize = 64 * 1024

// chunkReader pulls the file in full UploadChunkSize chunks, reporting
// progress once per chunk, and serves the HTTP client's reads from the
// current chunk. Only the last chunk may be short.
type chunkReader struct {
	r       io.Reader
	m       *meter
	buf     []byte
	pending []byte
	err     error
}

func newChunkReader(r io.Reader, m *meter) *chunkReader {
	return &chunkReader{r: r, m: m, buf: make([]byte, UploadChunkSize)}
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		if err := c.fill(); err != nil && len(c.pending) == 0 {
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *chunkReader) fill() error {
	n, err := io.ReadFull(c.r, c.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.err = io.EOF
	default:
		c.err = err
	}
	if n > 0 {
		c.pending = c.buf[:n]
		c.m.add(n)
	}
	return c.err
}

// Upload PUTs the file at sourcePath to url and returns the response body.
func Upload(ctx context.Context, client *http.Client, url, sourcePath string, opts *RequestOptions) (string, error) {
	file, err := os.Open(sourcePath)
	if err != nil {
		return "", xerrors.Errorf("opening %s: %w", sourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", xerrors.Errorf("stat %s: %w", sourcePath, err)
	}
	size := stat.Size()

	var body io.Reader = http.NoBody
	if size > 0 {
		body = newChunkReader(file, newMeter(uint64(size), opts.progress()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", xerrors.Errorf("creating request for %s: %w", url, err)
	}
	req.ContentLength = size
	opts.applyHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", xerrors.Errorf("uploading %s to %s: %w", sourcePath, url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xerrors.Errorf("reading response from %s: %w", url, err)
	}

	log.Debugw("upload complete", "url", url, "file", sourcePath, "size", humanize.IBytes(uint64(size)))
	return string(text), nil
}
