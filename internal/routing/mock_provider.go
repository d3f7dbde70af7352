// Package routing provides scripted provider clients for router tests.
package routing

import (
	"context"
	"io"
	"sync"

	"meridian-hq/meridian/pkg/providers"
)

// Outcome scripts one MockClient response.
type Outcome struct {
	// Response is returned when Err is nil.
	Response *providers.Response

	// Err fails the dispatch.
	Err *providers.SendError

	// Chunks scripts a stream for SendStream calls. The stream yields the
	// chunks in order, then StreamErr or a clean EOF.
	Chunks    []*providers.Chunk
	StreamErr error
}

// MockClient is a scripted providers.Client. Each Send or SendStream call
// consumes the next Outcome; a drained script fails with a transport error.
type MockClient struct {
	name string

	mu       sync.Mutex
	script   []Outcome
	calls    int
	lastReq  *providers.Request
	lastMode string
}

// NewMockClient creates a client that plays back the given outcomes.
func NewMockClient(name string, script ...Outcome) *MockClient {
	return &MockClient{name: name, script: script}
}

// Name returns the provider name.
func (m *MockClient) Name() string {
	return m.name
}

// Calls returns how many dispatches the client has served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request seen.
func (m *MockClient) LastRequest() *providers.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

// Append adds outcomes to the end of the script.
func (m *MockClient) Append(outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, outcomes...)
}

func (m *MockClient) next(mode string, req *providers.Request) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastReq = req
	m.lastMode = mode

	if len(m.script) == 0 {
		return Outcome{}, false
	}
	out := m.script[0]
	m.script = m.script[1:]
	return out, true
}

// Send plays the next scripted outcome.
func (m *MockClient) Send(_ context.Context, providerModelID string, req *providers.Request) (*providers.Response, *providers.SendError) {
	out, ok := m.next("send", req)
	if !ok {
		return nil, providers.NewTransportError(m.name, io.ErrUnexpectedEOF)
	}
	if out.Err != nil {
		return nil, out.Err
	}
	resp := out.Response
	if resp == nil {
		resp = &providers.Response{Content: "ok", Model: providerModelID}
	}
	return resp, nil
}

// SendStream plays the next scripted outcome as a stream.
func (m *MockClient) SendStream(_ context.Context, providerModelID string, req *providers.Request) (providers.Stream, *providers.SendError) {
	out, ok := m.next("stream", req)
	if !ok {
		return nil, providers.NewTransportError(m.name, io.ErrUnexpectedEOF)
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return &mockStream{chunks: out.Chunks, finalErr: out.StreamErr}, nil
}

// mockStream yields scripted chunks, then finalErr or io.EOF.
type mockStream struct {
	mu       sync.Mutex
	chunks   []*providers.Chunk
	finalErr error
	closed   bool
}

func (s *mockStream) Recv() (*providers.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.finalErr != nil {
		return nil, s.finalErr
	}
	return nil, io.EOF
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
