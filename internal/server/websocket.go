package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/wsdiscovery"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Clients have nothing to
	// say beyond control frames.
	maxMessageSize = 512
)

// StreamEnd is the last message of a device stream. Exactly one of Done
// or Error is set.
type StreamEnd struct {
	Done  bool   `json:"done,omitempty"`
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// handleDeviceStream runs one discovery and sends every device as its own
// JSON message the moment it is found, followed by a StreamEnd.
func (s *Server) handleDeviceStream(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r, s.config.DefaultTimeout, s.config.MaxTimeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	s.track(remoteAddr, conn)
	logging.Info("Device stream opened",
		zap.String("remote_addr", remoteAddr),
		zap.Duration("timeout", timeout),
	)

	defer func() {
		_ = conn.Close()
		s.untrack(remoteAddr)
		logging.Info("Device stream closed", zap.String("remote_addr", remoteAddr))
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that goes away ends its discovery early
	conn.SetReadLimit(maxMessageSize)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logging.Debug("Stream reader stopped",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		}
	}()

	count := 0
	var writeErr error
	err = s.discoverer.DiscoverFunc(ctx, timeout, func(dev wsdiscovery.Device) {
		if writeErr != nil {
			return
		}
		if writeErr = writeMessage(conn, dev); writeErr != nil {
			cancel()
			return
		}
		count++
	})

	if writeErr != nil {
		logging.Warn("Failed to send device, stream abandoned",
			zap.String("remote_addr", remoteAddr),
			zap.Int("sent", count),
			zap.Error(writeErr),
		)
		return
	}

	end := StreamEnd{Done: true, Count: count}
	if err != nil {
		logging.Error("Streamed discovery failed",
			zap.String("remote_addr", remoteAddr),
			zap.Int("sent", count),
			zap.Error(err),
		)
		end = StreamEnd{Error: err.Error(), Hint: wsdiscovery.GetTroubleshootingHint(err)}
	}

	if err := writeMessage(conn, end); err != nil {
		logging.Debug("Failed to send stream end",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}

func writeMessage(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
