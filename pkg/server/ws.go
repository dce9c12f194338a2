package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleWS runs one turn per inbound frame. Turns on a connection are
// sequential; each reply frame is a TurnResponse plus its status.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort close

	ctx := r.Context()
	for {
		var payload TurnRequest
		if err := wsjson.Read(ctx, conn, &payload); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		resp, status := s.runTurn(ctx, payload)
		if err := wsjson.Write(ctx, conn, wsReply{TurnResponse: resp, Status: status}); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

type wsReply struct {
	TurnResponse
	Status int `json:"status"`
}
