package h3

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
)

type chunk struct {
	buf *bytebufferpool.ByteBuffer
	err error
}

// pump reads a response body in the background so that a caller-side read
// can give up after a timeout without breaking the stream.
type pump struct {
	body      io.ReadCloser
	ch        chan chunk
	done      chan struct{}
	closeOnce sync.Once

	cur *bytebufferpool.ByteBuffer
	off int
	err error
}

func newPump(body io.ReadCloser, chunkSize int) *pump {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	p := &pump{
		body: body,
		ch:   make(chan chunk, 1),
		done: make(chan struct{}),
	}
	go p.run(chunkSize)
	return p
}

func (p *pump) run(chunkSize int) {
	for {
		bb := bytebufferpool.Get()
		if cap(bb.B) < chunkSize {
			bb.B = make([]byte, chunkSize)
		} else {
			bb.B = bb.B[:chunkSize]
		}
		n, err := p.body.Read(bb.B)
		bb.B = bb.B[:n]
		select {
		case p.ch <- chunk{buf: bb, err: err}:
		case <-p.done:
			bytebufferpool.Put(bb)
			return
		}
		if err != nil {
			return
		}
	}
}

// read copies buffered data into b, waiting at most timeout for more when
// the buffer is empty. A zero timeout waits forever.
func (p *pump) read(b []byte, timeout time.Duration) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	var expired <-chan time.Time
	for p.cur == nil {
		if p.err != nil {
			return 0, p.err
		}
		if expired == nil && timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case c := <-p.ch:
			if c.err != nil {
				p.err = c.err
			}
			if len(c.buf.B) == 0 {
				bytebufferpool.Put(c.buf)
				continue
			}
			p.cur, p.off = c.buf, 0
		case <-expired:
			return 0, os.ErrDeadlineExceeded
		}
	}
	n := copy(b, p.cur.B[p.off:])
	p.off += n
	if p.off == len(p.cur.B) {
		bytebufferpool.Put(p.cur)
		p.cur = nil
	}
	return n, nil
}

func (p *pump) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.body.Close()
		if p.cur != nil {
			bytebufferpool.Put(p.cur)
			p.cur = nil
		}
	})
}
