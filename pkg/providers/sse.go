package providers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// sseStream reads Server-Sent Events from an OpenAI-compatible streaming
// response and yields normalized chunks. Only "data: [DONE]" terminates the
// stream cleanly; a transport error or a connection that closes without the
// terminator is an interrupted stream, because the response may have been
// truncated mid-completion.
type sseStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner

	mu      sync.Mutex
	closed  bool
	sawDone bool
}

func newSSEStream(provider string, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	// Allow oversized events; the default 64KiB line limit is too small for
	// large deltas.
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	return &sseStream{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

// Recv returns the next chunk, io.EOF on clean termination, or an error if
// the stream breaks mid-flight.
func (s *sseStream) Recv() (*Chunk, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, io.EOF
	}

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("provider %s: stream read failed: %w", s.provider, err)
			}
			if s.terminated() {
				return nil, io.EOF
			}
			// Upstream closed the connection without sending [DONE]: the
			// completion may be truncated.
			return nil, fmt.Errorf("provider %s: stream ended without termination marker", s.provider)
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.mu.Lock()
			s.sawDone = true
			s.mu.Unlock()
			return nil, io.EOF
		}

		var parsed chatStreamChunk
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			return nil, fmt.Errorf("provider %s: malformed stream chunk: %w", s.provider, err)
		}

		chunk := &Chunk{}
		if len(parsed.Choices) > 0 {
			chunk.Delta = parsed.Choices[0].Delta.Content
		}
		if parsed.Usage != nil {
			chunk.Usage = &Usage{
				InputTokens:  parsed.Usage.PromptTokens,
				OutputTokens: parsed.Usage.CompletionTokens,
			}
		}

		// Usage-only chunks (empty delta, no choices) still matter: the
		// final usage chunk is what the ledger bills from.
		return chunk, nil
	}
}

func (s *sseStream) terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawDone
}

// Close releases the underlying connection. Safe to call more than once.
func (s *sseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
