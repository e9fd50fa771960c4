package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"quotefeed/internal/domain"
)

// streamWriteTimeout bounds a single websocket write.
const streamWriteTimeout = 10 * time.Second

// handleStream upgrades the connection to a websocket and pushes every
// sample produced for the symbol until the peer disconnects. The connection
// counts as one feed subscriber, so it keeps the symbol's poll loop alive.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept", "symbol", symbol, "err", err)
		return
	}

	ctx := r.Context()

	// Buffered so the feed's fan-out never blocks on this connection. A
	// consumer that falls behind misses samples rather than stalling the
	// producer.
	samples := make(chan domain.Sample, 16)
	unsub, err := s.feed.Subscribe(symbol, func(sm domain.Sample) {
		select {
		case samples <- sm:
		default:
		}
	})
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer unsub()

	// Drain reads so control frames are processed; a read error means the
	// peer went away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	s.log.Info("stream opened", "symbol", symbol)
	defer s.log.Info("stream closed", "symbol", symbol)

	for {
		select {
		case sm := <-samples:
			writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, sm)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		case <-readDone:
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}
