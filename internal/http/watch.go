package httpapp

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/session"
)

// WatchFrame is sent by the server: a page after every change, or an error
// just before the connection is closed.
type WatchFrame struct {
	Type  string        `json:"type"`
	Page  *PageResponse `json:"page,omitempty"`
	Error string        `json:"error,omitempty"`
}

// ViewRequest is sent by the client to change what it is looking at.
// Omitted fields keep their current value.
type ViewRequest struct {
	Sort     *string `json:"sort,omitempty"`
	Page     *int    `json:"page,omitempty"`
	PageSize *int    `json:"page_size,omitempty"`
}

// handleWatch godoc
//
//	@Summary		Watch a board
//	@Description	WebSocket. The server sends a page frame now and after every change to the board; send {"sort","page","page_size"} frames to move the view.
//	@Tags			Items
//	@Param			board		path	string	true	"Board"	Enums(ideas, problems)
//	@Param			token		query	string	false	"Bearer token, to mark your own items and votes"
//	@Param			sort		query	string	false	"Sort key"
//	@Param			page		query	int		false	"Zero-based page"
//	@Param			page_size	query	int		false	"Items per page"
//	@Success		101
//	@Router			/api/{board}/watch [get]
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request, b session.Board) {
	userID := s.optionalUser(r)
	sess := s.newSession(r, b, userID)
	q := r.URL.Query()
	if err := s.applyView(sess, q.Get("sort"), q.Get("page"), q.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ws := websocket.Server{
		// Command-line clients send no Origin header.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			s.serveWatch(r.Context(), conn, b, sess, userID)
		},
	}
	ws.ServeHTTP(w, r)
}

func (s *Server) serveWatch(parent context.Context, conn *websocket.Conn, b session.Board, sess *session.Session, userID string) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var mu sync.Mutex
	send := func(frame WatchFrame) {
		mu.Lock()
		defer mu.Unlock()
		if err := websocket.JSON.Send(conn, frame); err != nil {
			cancel()
		}
	}
	sendPage := func(page board.Page) {
		resp := s.pageResponse(b, page, userID)
		send(WatchFrame{Type: "page", Page: &resp})
	}

	go func() {
		defer cancel()
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("watch reader panicked", "board", boardName(b), "panic", v)
			}
		}()
		for {
			var req ViewRequest
			if err := websocket.JSON.Receive(conn, &req); err != nil {
				return
			}
			if err := s.applyViewRequest(sess, req); err != nil {
				send(WatchFrame{Type: "error", Error: err.Error()})
				continue
			}
			sendPage(sess.Render())
		}
	}()

	err := sess.Watch(ctx, func(page board.Page, err error) {
		if err != nil {
			send(WatchFrame{Type: "error", Error: err.Error()})
			return
		}
		sendPage(page)
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("watch ended", "board", boardName(b), "err", err)
	}
}

func (s *Server) applyViewRequest(sess *session.Session, req ViewRequest) error {
	if req.Sort != nil {
		key, err := board.ParseSortKey(*req.Sort, sess.Board().Kind)
		if err != nil {
			return err
		}
		if err := sess.SetSort(key); err != nil {
			return err
		}
	}
	if req.PageSize != nil {
		sess.SetPageSize(*req.PageSize)
	}
	if req.Page != nil {
		sess.SetPage(*req.Page)
	}
	return nil
}

