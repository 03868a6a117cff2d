package transfer

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestOptions are the optional parts of a transfer call. A nil
// *RequestOptions is valid and means "no progress, no extra headers, no body".
type RequestOptions struct {
	Progress ProgressObserver
	Header   http.Header
	Body     string // request body for templated GET requests, download only
}

func (o *RequestOptions) progress() ProgressObserver {
	if o == nil || o.Progress == nil {
		return Nop
	}
	return o.Progress
}

func (o *RequestOptions) body() string {
	if o == nil {
		return ""
	}
	return o.Body
}

func (o *RequestOptions) applyHeader(req *http.Request) {
	if o == nil {
		return
	}
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	status := resp.Status
	if strings.TrimSpace(status) == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     status,
	}
}

// NewHTTPClient builds the client shared (read-only) by concurrent transfers.
// A zero timeout disables the whole-request limit.
func NewHTTPClient(dialTimeout, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
