package h3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/apernet/bequic/core/transport"
)

var (
	errInvalidWhence       = errors.New("invalid whence")
	errNegativeOffset      = errors.New("negative seek offset")
	errRangeNotSupported   = errors.New("server ignored the range request")
	errOpenTimeout         = errors.New("timed out waiting for response headers")
	errUnexpectedRangeBody = errors.New("server returned an unexpected range")
)

type session struct {
	t      *Transport
	req    transport.OpenRequest
	reqURL *url.URL
	rt     *http3.RoundTripper

	mu     sync.Mutex
	cancel context.CancelFunc
	body   *pump // nil once positioned at or past the end
	pos    int64
	size   int64 // -1 if unknown
}

// request fetches the resource from offset. On failure the current response,
// if any, is left untouched.
func (s *session) request(offset int64) error {
	method := s.req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(s.req.Body) > 0 && offset == 0 {
		body = bytes.NewReader(s.req.Body)
	}
	ctx, cancel := context.WithCancel(context.Background())
	hreq, err := http.NewRequestWithContext(ctx, method, s.reqURL.String(), body)
	if err != nil {
		cancel()
		return err
	}
	for k, vs := range s.req.Headers {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if offset > 0 {
		hreq.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	var timer *time.Timer
	if s.req.Timeout > 0 {
		timer = time.AfterFunc(s.req.Timeout, cancel)
	}
	resp, err := s.rt.RoundTrip(hreq)
	if timer != nil && !timer.Stop() {
		if err == nil {
			_ = resp.Body.Close()
		}
		cancel()
		return errOpenTimeout
	}
	if err != nil {
		cancel()
		return err
	}

	size := int64(-1)
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			_ = resp.Body.Close()
			cancel()
			return errUnexpectedRangeBody
		}
		size = total
	case resp.StatusCode == http.StatusOK && offset == 0:
		size = resp.ContentLength
	case resp.StatusCode == http.StatusOK:
		_ = resp.Body.Close()
		cancel()
		return errRangeNotSupported
	default:
		_ = resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected response status %s", resp.Status)
	}

	s.stop()
	s.cancel = cancel
	s.body = newPump(resp.Body, s.t.ChunkSize)
	s.pos = offset
	if size >= 0 {
		s.size = size
	}
	return nil
}

// stop tears down the current response.
func (s *session) stop() {
	if s.body != nil {
		s.body.close()
		s.body = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *session) read(p []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return 0, io.EOF
	}
	n, err := s.body.read(p, timeout)
	s.pos += int64(n)
	return n, err
}

func (s *session) seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target int64
	switch whence &^ transport.SeekForce {
	case transport.SeekSize:
		if s.size < 0 {
			return -1, ErrUnknownSize
		}
		return s.size, nil
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		if s.size < 0 {
			return -1, ErrUnknownSize
		}
		target = s.size + offset
	default:
		return -1, errInvalidWhence
	}
	if target < 0 {
		return -1, errNegativeOffset
	}
	if target == s.pos && s.body != nil {
		return s.pos, nil
	}
	if s.size >= 0 && target >= s.size {
		// Nothing left to fetch, reads return io.EOF.
		s.stop()
		s.pos = target
		return target, nil
	}
	if err := s.request(target); err != nil {
		s.t.logf(transport.SeverityWarning, "seek to %d failed: %v", target, err)
		return -1, err
	}
	return target, nil
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return s.rt.Close()
}

// parseContentRange parses "bytes start-end/total". Total is -1 for "*".
func parseContentRange(v string) (start, total int64, ok bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, 0, false
	}
	v = strings.TrimPrefix(v, "bytes ")
	slash := strings.IndexByte(v, '/')
	dash := strings.IndexByte(v, '-')
	if slash < 0 || dash < 0 || dash > slash {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(v[:dash], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if v[slash+1:] == "*" {
		return start, -1, true
	}
	total, err = strconv.ParseInt(v[slash+1:], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, total, true
}
