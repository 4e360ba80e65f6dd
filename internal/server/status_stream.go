package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleStatusStream pushes status events to websocket clients: warm-up
// transitions, cache clears and backup completions, plus a heartbeat so
// idle connections stay alive through proxies.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Event stream is not configured")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.log.Info().Msg("Client connected to status stream")

	events := s.bus.SubscribeStream()
	defer s.bus.Unsubscribe(events)

	ctx := r.Context()

	if err := s.writeStreamMessage(ctx, conn, map[string]interface{}{
		"type": "connected",
		"data": map[string]interface{}{"upstream": s.tracker.Status()},
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Client disconnected from status stream")
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeStreamMessage(ctx, conn, event); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := s.writeStreamMessage(ctx, conn, map[string]interface{}{
				"type": "heartbeat",
			}); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeStreamMessage(ctx context.Context, conn *websocket.Conn, payload interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, payload); err != nil {
		s.log.Debug().Err(err).Msg("Status stream write failed")
		return err
	}
	return nil
}
