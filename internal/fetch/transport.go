package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Response is a transport result. The caller owns Body and must close it.
type Response struct {
	Body        io.ReadCloser
	ContentType string
	OK          bool
	Error       string
}

// Transport performs the network transfer for a URL.
type Transport interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// HTTPTransport fetches over net/http with a connect timeout and a read
// timeout that applies to the response headers and to every body read.
type HTTPTransport struct {
	client      *http.Client
	readTimeout time.Duration
	UserAgent   string
}

func NewHTTPTransport(connectTimeout, readTimeout time.Duration) *HTTPTransport {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = connectTimeout
	tr.ResponseHeaderTimeout = readTimeout
	return &HTTPTransport{
		client:      &http.Client{Transport: tr},
		readTimeout: readTimeout,
		UserAgent:   "lottied",
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	out := &Response{
		Body:        newIdleReader(resp.Body, t.readTimeout, cancel),
		ContentType: resp.Header.Get("Content-Type"),
		OK:          resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !out.OK {
		out.Error = "unable to fetch " + url + ": " + resp.Status
	}
	return out, nil
}

// idleReader cancels the request when no read completes within timeout.
type idleReader struct {
	rc      io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	once    sync.Once
}

func newIdleReader(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	return &idleReader{rc: rc, timeout: timeout, timer: time.AfterFunc(timeout, cancel), cancel: cancel}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.timer.Reset(r.timeout)
	return n, err
}

func (r *idleReader) Close() error {
	var err error
	r.once.Do(func() {
		r.timer.Stop()
		err = r.rc.Close()
		r.cancel()
	})
	return err
}
