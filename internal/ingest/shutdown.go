package ingest

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/logs"
)

// DefaultQuitToken is the operator input that requests shutdown.
const DefaultQuitToken = "q"

// Shutdown is the process-wide shutdown state. It starts false and flips to
// true exactly once.
type Shutdown struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
}

func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Request sets the shutdown state. Only the first call returns true.
func (s *Shutdown) Request() bool {
	first := false
	s.once.Do(func() {
		s.requested.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// Requested reports whether shutdown has been requested.
func (s *Shutdown) Requested() bool {
	return s.requested.Load()
}

// Done is closed once shutdown has been requested.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// WatchInput reads operator input line by line until token arrives, then
// requests shutdown. It returns without requesting shutdown when r is
// exhausted.
func WatchInput(r io.Reader, token string, s *Shutdown) {
	if token == "" {
		token = DefaultQuitToken
	}
	scanner := bufio.NewScanner(r)
	for !s.Requested() && scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != token {
			continue
		}
		if s.Request() {
			logs.Info("quitting")
		}
		return
	}
	if err := scanner.Err(); err != nil {
		logs.Warnf("stop watching operator input, err: %+v", err)
	}
}
