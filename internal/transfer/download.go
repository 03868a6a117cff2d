package transfer

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("transfer")

// DownloadChunkSize bounds how much of a response body is held in memory
const DownloadChunkSize = 32 * 1024

type flusher interface {
	Flush() error
}

// Download streams the body of a GET on url into sink. Every chunk is written
// to the sink before the next one is read, so a slow sink throttles the
// transfer. Download owns sink: it is flushed and closed on success and
// closed on failure. Bytes already written are not rolled back on error.
func Download(ctx context.Context, client *http.Client, url string, sink io.Writer, opts *RequestOptions) (err error) {
	defer func() {
		if err != nil {
			closeQuietly(sink)
		}
	}()

	var body io.Reader
	if b := opts.body(); b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, body)
	if err != nil {
		return xerrors.Errorf("creating request for %s: %w", url, err)
	}
	opts.applyHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return xerrors.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	m := newMeter(total, opts.progress())

	buf := make([]byte, DownloadChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				return xerrors.Errorf("writing chunk of %s: %w", url, werr)
			}
			m.add(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return xerrors.Errorf("reading body of %s: %w", url, rerr)
		}
	}

	if f, ok := sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return xerrors.Errorf("flushing sink for %s: %w", url, err)
		}
	}
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return xerrors.Errorf("closing sink for %s: %w", url, err)
		}
	}

	log.Debugw("download complete", "url", url, "size", humanize.IBytes(m.done))
	return nil
}

func closeQuietly(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debugw("closing sink after failed transfer", "error", err)
		}
	}
}
