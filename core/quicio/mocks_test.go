package quicio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/apernet/bequic/core/resolve"
	"github.com/apernet/bequic/core/transport"
)

type mockTransport struct {
	mock.Mock
}

func newMockTransport(t *testing.T) *mockTransport {
	m := &mockTransport{}
	// Not called when the test never reaches Open.
	m.On("SetLogCallback", mock.Anything).Return().Maybe()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockTransport) Open(req transport.OpenRequest) (int, error) {
	args := m.Called(req)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) Read(handle int, p []byte, timeout time.Duration) (int, error) {
	args := m.Called(handle, p, timeout)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) Write(handle int, p []byte) (int, error) {
	args := m.Called(handle, p)
	return args.Int(0), args.Error(1)
}

func (m *mockTransport) Seek(handle int, offset int64, whence int) (int64, error) {
	args := m.Called(handle, offset, whence)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTransport) Close(handle int) error {
	args := m.Called(handle)
	return args.Error(0)
}

func (m *mockTransport) SetLogCallback(cb transport.LogCallback) {
	m.Called(cb)
}

type mockResolver struct {
	mock.Mock
}

func newMockResolver(t *testing.T) *mockResolver {
	m := &mockResolver{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockResolver) Resolve(ctx context.Context, host string, port int) (resolve.Address, error) {
	args := m.Called(ctx, host, port)
	return args.Get(0).(resolve.Address), args.Error(1)
}

type eventRecord struct {
	Kind   string
	URL    string
	Handle int
	Err    error
}

type recordingEventLogger struct {
	mu     sync.Mutex
	events []eventRecord
}

func (l *recordingEventLogger) Open(url string, handle int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, eventRecord{Kind: "open", URL: url, Handle: handle, Err: err})
}

func (l *recordingEventLogger) Close(handle int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, eventRecord{Kind: "close", Handle: handle, Err: err})
}

type recordingTrafficLogger struct {
	tx, rx uint64
}

func (l *recordingTrafficLogger) Log(handle int, tx, rx uint64) {
	l.tx += tx
	l.rx += rx
}

type countingTransport struct {
	mockTransport
	callbacks int
}

func (c *countingTransport) SetLogCallback(cb transport.LogCallback) {
	c.callbacks++
}
