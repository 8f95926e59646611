package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mathclub/ideaboard/internal/auth"
	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/config"
	"github.com/mathclub/ideaboard/internal/rate"
	"github.com/mathclub/ideaboard/internal/render"
	"github.com/mathclub/ideaboard/internal/session"
	"github.com/mathclub/ideaboard/internal/store"

	_ "github.com/mathclub/ideaboard/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type Server struct {
	store     store.Store
	auth      *auth.Service
	limiter   rate.Limiter
	cfg       config.Config
	boards    map[string]session.Board
	render    *render.Renderer
	templates *Templates
	logger    *slog.Logger
}

func NewServer(st store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	ideas, problems := session.Boards(cfg.AppID)
	return &Server{
		store:   st,
		auth:    authSvc,
		limiter: limiter,
		cfg:     cfg,
		boards: map[string]session.Board{
			"ideas":    ideas,
			"problems": problems,
		},
		render:    render.New(cfg.RawHTML),
		templates: tmpl,
		logger:    logger,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleAPI(rec, r)
	} else {
		s.handleHTML(rec, r)
	}
	s.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/swagger/") {
		httpSwagger.WrapHandler.ServeHTTP(w, r)
		return
	}
	var b session.Board
	switch path {
	case "/", "/ideas":
		b = s.boards["ideas"]
	case "/problems":
		b = s.boards["problems"]
	default:
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.handleBoardPage(w, r, b)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "anonymous":
		if r.Method == http.MethodPost {
			s.handleAnonymousSignIn(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "version":
		if r.Method == http.MethodGet {
			s.handleVersion(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "openapi.json":
		if r.Method == http.MethodGet {
			s.serveOpenAPIJSON(w, r)
			return
		}
	case len(segments) >= 2:
		b, ok := s.boards[segments[0]]
		if !ok {
			break
		}
		s.handleBoardAPI(w, r, b, segments[1:])
		return
	}

	notFound(w)
}

func (s *Server) handleBoardAPI(w http.ResponseWriter, r *http.Request, b session.Board, segments []string) {
	switch {
	case len(segments) == 1 && segments[0] == "items":
		if r.Method == http.MethodGet {
			s.handleListItems(w, r, b)
			return
		}
		if r.Method == http.MethodPost {
			s.handleCreateItem(w, r, b)
			return
		}
	case len(segments) == 1 && segments[0] == "watch":
		if r.Method == http.MethodGet {
			s.handleWatch(w, r, b)
			return
		}
	case len(segments) == 2 && segments[0] == "items":
		switch r.Method {
		case http.MethodGet:
			s.handleGetItem(w, r, b, segments[1])
			return
		case http.MethodPatch:
			s.handleEditItem(w, r, b, segments[1])
			return
		case http.MethodDelete:
			s.handleDeleteItem(w, r, b, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "items" && segments[2] == "vote":
		if r.Method == http.MethodPost {
			s.handleVote(w, r, b, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "items" && segments[2] == "rating":
		if r.Method == http.MethodPost {
			s.handleRate(w, r, b, segments[1])
			return
		}
	}
	notFound(w)
}

// handleAnonymousSignIn godoc
//
//	@Summary		Sign in anonymously
//	@Description	Issue a new anonymous identity, or refresh the token of the current one when a bearer token is sent.
//	@Tags			Authentication
//	@Produce		json
//	@Success		200	{object}	auth.Credentials
//	@Failure		401	{object}	map[string]string	"Invalid or expired token"
//	@Failure		429	{object}	map[string]string	"Rate limited"
//	@Router			/api/auth/anonymous [post]
func (s *Server) handleAnonymousSignIn(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "signin", "", s.cfg.RateLimits.SubmitPerMinute) {
		return
	}
	var (
		creds auth.Credentials
		err   error
	)
	if bearer := auth.BearerToken(r); bearer != "" {
		creds, err = s.auth.Refresh(r.Context(), bearer)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
	} else {
		creds, err = s.auth.SignInAnonymously(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    s.cfg.Version,
		"commit":     s.cfg.Commit,
		"build_time": s.cfg.BuildTime,
	})
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

// handleListItems godoc
//
//	@Summary		List items
//	@Description	One page of a board, sorted. Ideas default to recent first, problems to most reviewed then hardest.
//	@Tags			Items
//	@Produce		json
//	@Param			board		path		string	true	"Board"	Enums(ideas, problems)
//	@Param			sort		query		string	false	"Sort key"
//	@Param			page		query		int		false	"Zero-based page"	default(0)
//	@Param			page_size	query		int		false	"Items per page"	default(10)	maximum(100)
//	@Success		200			{object}	PageResponse
//	@Failure		400			{object}	map[string]string	"Unknown sort key"
//	@Router			/api/{board}/items [get]
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, b session.Board) {
	sess := s.newSession(r, b, s.optionalUser(r))
	if err := s.applyView(sess, r.URL.Query().Get("sort"), r.URL.Query().Get("page"), r.URL.Query().Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := sess.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pageResponse(b, page, sess.UserID()))
}

// handleCreateItem godoc
//
//	@Summary		Submit an item
//	@Description	Submit an idea or a problem. Problems need both a problem statement and an answer.
//	@Tags			Items
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			board	path		string			true	"Board"	Enums(ideas, problems)
//	@Param			item	body		ItemRequest		true	"Item"
//	@Success		201		{object}	ItemResponse
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/{board}/items [post]
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, b session.Board) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "submit", verified.UserID, s.cfg.RateLimits.SubmitPerMinute) {
		return
	}
	var req ItemRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := s.newSession(r, b, verified.UserID).Submit(r.Context(), req.submission())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.itemResponse(item, verified.UserID))
}

// handleGetItem godoc
//
//	@Summary		Get an item
//	@Tags			Items
//	@Produce		json
//	@Param			board	path		string	true	"Board"	Enums(ideas, problems)
//	@Param			id		path		string	true	"Item ID"
//	@Success		200		{object}	ItemResponse
//	@Failure		404		{object}	map[string]string	"Item not found"
//	@Router			/api/{board}/items/{id} [get]
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, b session.Board, id string) {
	userID := s.optionalUser(r)
	item, err := s.newSession(r, b, userID).Item(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.itemResponse(item, userID))
}

// handleEditItem godoc
//
//	@Summary		Edit an item
//	@Description	Replace the text (and, for ideas, the planning attributes) of your own item.
//	@Tags			Items
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			board	path		string		true	"Board"	Enums(ideas, problems)
//	@Param			id		path		string		true	"Item ID"
//	@Param			item	body		ItemRequest	true	"New content"
//	@Success		200		{object}	ItemResponse
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		403		{object}	map[string]string	"Not your item"
//	@Failure		404		{object}	map[string]string	"Item not found"
//	@Router			/api/{board}/items/{id} [patch]
func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request, b session.Board, id string) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := s.newSession(r, b, verified.UserID)
	if err := sess.Edit(r.Context(), id, req.submission()); err != nil {
		writeSessionError(w, err)
		return
	}
	item, err := sess.Item(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.itemResponse(item, verified.UserID))
}

// handleDeleteItem godoc
//
//	@Summary		Delete an item
//	@Tags			Items
//	@Produce		json
//	@Security		BearerAuth
//	@Param			board	path		string	true	"Board"	Enums(ideas, problems)
//	@Param			id		path		string	true	"Item ID"
//	@Success		200		{object}	map[string]bool		"Deleted"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		403		{object}	map[string]string	"Not your item"
//	@Failure		404		{object}	map[string]string	"Item not found"
//	@Router			/api/{board}/items/{id} [delete]
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, b session.Board, id string) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if err := s.newSession(r, b, verified.UserID).Delete(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleVote godoc
//
//	@Summary		Vote on an idea
//	@Description	Voting again in the same direction withdraws the vote; voting the other way switches it.
//	@Tags			Votes
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string						true	"Idea ID"
//	@Param			vote	body		object{type=string}			true	"upvote or downvote"
//	@Success		200		{object}	model.VoteRecord
//	@Failure		400		{object}	map[string]string	"Invalid vote or wrong board"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		404		{object}	map[string]string	"Idea not found"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/ideas/items/{id}/vote [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, b session.Board, id string) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "vote", verified.UserID, s.cfg.RateLimits.VotePerMinute) {
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voteType, err := board.ParseVoteType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	votes, err := s.newSession(r, b, verified.UserID).Vote(r.Context(), id, voteType)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// handleRate godoc
//
//	@Summary		Rate a problem
//	@Description	Rate difficulty from 1 to 5. Rating again replaces your previous rating.
//	@Tags			Ratings
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string					true	"Problem ID"
//	@Param			rating	body		object{rating=int}		true	"Rating 1-5"
//	@Success		200		{object}	model.RatingRecord
//	@Failure		400		{object}	map[string]string	"Invalid rating or wrong board"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		404		{object}	map[string]string	"Problem not found"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/problems/items/{id}/rating [post]
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, b session.Board, id string) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "rate", verified.UserID, s.cfg.RateLimits.RatePerMinute) {
		return
	}
	var req struct {
		Rating int `json:"rating"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rating, err := s.newSession(r, b, verified.UserID).Rate(r.Context(), id, req.Rating)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (s *Server) newSession(r *http.Request, b session.Board, userID string) *session.Session {
	return session.New(s.store, b, userID, s.logger.With("remote", s.clientIP(r)))
}

// applyView sets sort and paging from request parameters. Missing values
// keep the board defaults.
func (s *Server) applyView(sess *session.Session, sortName, page, pageSize string) error {
	key, err := board.ParseSortKey(sortName, sess.Board().Kind)
	if err != nil {
		return err
	}
	if err := sess.SetSort(key); err != nil {
		return err
	}
	sess.SetPageSize(parseIntDefault(pageSize, s.defaultPageSize()))
	sess.SetPage(parseIntDefault(page, 0))
	return nil
}

func (s *Server) defaultPageSize() int {
	if s.cfg.PageSize > 0 {
		return s.cfg.PageSize
	}
	return board.DefaultPageSize
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action, userID string, limit int) bool {
	if limit <= 0 {
		return true
	}
	if ok, retry := s.limiter.Allow(rate.Key(action, "ip", s.clientIP(r)), limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	if userID != "" {
		if ok, retry := s.limiter.Allow(rate.Key(action, "user", userID), limit, time.Minute); !ok {
			writeRateLimit(w, retry)
			return false
		}
	}
	return true
}

// optionalUser returns the caller's user id, or "" for anonymous readers.
func (s *Server) optionalUser(r *http.Request) string {
	bearer := auth.BearerToken(r)
	if bearer == "" {
		bearer = r.URL.Query().Get("token")
	}
	if bearer == "" {
		return ""
	}
	verified, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		return ""
	}
	return verified.UserID
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Verified, bool) {
	verified, err := s.auth.Authenticate(r.Context(), auth.BearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return auth.Verified{}, false
	}
	return verified, true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeSessionError maps session and store errors onto status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrEmptyContent),
		errors.Is(err, session.ErrEmptyAnswer),
		errors.Is(err, session.ErrWrongBoard),
		errors.Is(err, board.ErrInvalidVoteType),
		errors.Is(err, board.ErrInvalidRating),
		errors.Is(err, board.ErrInvalidSortKey):
		status = http.StatusBadRequest
	case session.KindOf(err) == session.AuthFailure:
		status = http.StatusUnauthorized
	}
	// Callers see the cause, not the session bookkeeping around it.
	var serr *session.Error
	if errors.As(err, &serr) {
		err = serr.Err
	}
	writeError(w, status, err)
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	seconds := int(retry.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": seconds,
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
