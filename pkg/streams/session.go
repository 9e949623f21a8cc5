package streams

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/logging"
)

// Callbacks receive a session's output. OnLine fires once per complete log
// line in arrival order; OnError fires at most once, for a transport
// failure; OnEnd fires exactly once when the upstream reports normal
// termination. After OnError or OnEnd the session is gone.
type Callbacks struct {
	OnLine  func(line string)
	OnError func(err error)
	OnEnd   func()
}

type sessionState int32

const (
	stateStarting sessionState = iota
	stateStreaming
	stateEnding
	stateClosed
)

// session is one live log tail. Its line buffer lives as a local inside
// readLoop so only the reader goroutine ever touches it; every termination
// trigger funnels into teardown, which runs once.
type session struct {
	id     string
	key    StreamKey
	mgr    *Manager
	cb     Callbacks
	cancel context.CancelFunc
	ctx    context.Context
	stream io.ReadCloser

	state     atomic.Int32
	closeOnce sync.Once
}

func (s *session) setState(st sessionState) {
	s.state.Store(int32(st))
}

func (s *session) getState() sessionState {
	return sessionState(s.state.Load())
}

// readLoop drains the live tail, reassembling raw chunks into lines. The
// pending buffer holds the trailing not-yet-terminated segment between
// reads.
func (s *session) readLoop(chunkSize int) {
	var pending []byte
	buf := make([]byte, chunkSize)

	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			pending = s.emitLines(append(pending, buf[:n]...))
		}
		if err == nil {
			continue
		}

		switch {
		case s.ctx.Err() != nil:
			// Stopped by unsubscribe/disconnect; teardown already ran or
			// is running, and the client gets no further messages.
		case err == io.EOF:
			s.setState(stateEnding)
			if len(pending) > 0 {
				s.cb.OnLine(string(pending))
			}
			s.cb.OnEnd()
		default:
			s.mgr.logger.ComponentWarn(logging.ComponentStreams, "live tail transport error",
				zap.String("stream_id", s.id),
				zap.Error(err))
			s.cb.OnError(err)
		}
		s.teardown()
		return
	}
}

// emitLines fires OnLine for every newline-terminated line in data and
// returns the trailing partial segment.
func (s *session) emitLines(data []byte) []byte {
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return data
		}
		s.cb.OnLine(string(data[:idx]))
		data = data[idx+1:]
	}
}

// teardown is the single cleanup path shared by explicit stop, transport
// error, and transport end. Safe to invoke any number of times; only the
// first has effect.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		s.setState(stateClosed)
		s.cancel()
		if s.stream != nil {
			_ = s.stream.Close()
		}
		s.mgr.remove(s.id, s)
	})
}
