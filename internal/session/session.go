// Package session holds one user's view of one board: who they are, how the
// list is sorted and paged, and the items last delivered by the store. Every
// action is a single read of the item followed by one combined update.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"
)

const (
	IdeasCollection    = "ideas"
	ProblemsCollection = "integralProblems"
)

// Board is one collection of items of a single kind.
type Board struct {
	Kind       model.Kind
	Collection string
}

// Boards returns the ideas board and the problems board of an application.
func Boards(appID string) (ideas, problems Board) {
	return Board{Kind: model.KindIdea, Collection: store.CollectionPath(appID, IdeasCollection)},
		Board{Kind: model.KindProblem, Collection: store.CollectionPath(appID, ProblemsCollection)}
}

func (b Board) DocumentPath(id string) string {
	return store.DocumentPath(b.Collection, id)
}

// Submission is the user-supplied part of an item.
type Submission struct {
	Content       string
	Answer        string
	SubmitterName string
	Attributes    model.Attributes
}

type Session struct {
	store  store.Store
	board  Board
	userID string
	logger *slog.Logger

	mu       sync.Mutex
	sort     board.SortKey
	page     int
	pageSize int
	items    []model.Item
	loaded   bool
}

func New(st store.Store, b Board, userID string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:    st,
		board:    b,
		userID:   userID,
		logger:   logger.With("board", string(b.Kind)),
		sort:     board.DefaultSort(b.Kind),
		pageSize: board.DefaultPageSize,
	}
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Board() Board { return s.board }

func (s *Session) Submit(ctx context.Context, sub Submission) (model.Item, error) {
	const op = "submit"
	if err := s.requireIdentity(op); err != nil {
		return model.Item{}, err
	}
	item := model.Item{
		Kind:          s.board.Kind,
		Content:       strings.TrimSpace(sub.Content),
		Answer:        strings.TrimSpace(sub.Answer),
		SubmitterName: strings.TrimSpace(sub.SubmitterName),
		OwnerID:       s.userID,
		Attributes:    sub.Attributes,
	}
	if err := s.validate(item); err != nil {
		return model.Item{}, s.fail(op, WriteFailure, err)
	}
	doc, err := s.store.Submit(ctx, s.board.Collection, model.NewItemFields(item))
	if err != nil {
		return model.Item{}, s.fail(op, WriteFailure, err)
	}
	created, err := model.DecodeItem(s.board.Kind, doc)
	if err != nil {
		return model.Item{}, s.fail(op, WriteFailure, err)
	}
	s.logger.Info("item submitted", "id", created.ID, "user", s.userID)
	return created, nil
}

// Vote toggles the user's vote on an idea and returns the record written.
func (s *Session) Vote(ctx context.Context, id string, voteType board.VoteType) (model.VoteRecord, error) {
	const op = "vote"
	if err := s.requireIdentity(op); err != nil {
		return model.VoteRecord{}, err
	}
	if s.board.Kind != model.KindIdea {
		return model.VoteRecord{}, s.fail(op, WriteFailure, ErrWrongBoard)
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return model.VoteRecord{}, s.fail(op, WriteFailure, err)
	}
	next, err := board.ApplyVote(item.Votes, s.userID, voteType)
	if err != nil {
		return model.VoteRecord{}, s.fail(op, WriteFailure, err)
	}
	if err := s.store.Update(ctx, s.board.DocumentPath(id), model.VoteFields(next)); err != nil {
		return model.VoteRecord{}, s.fail(op, WriteFailure, err)
	}
	s.logger.Info("vote recorded", "id", id, "user", s.userID, "type", string(voteType), "net", next.Net())
	return next, nil
}

// Rate records the user's difficulty rating of a problem and returns the
// updated aggregate.
func (s *Session) Rate(ctx context.Context, id string, rating int) (model.RatingRecord, error) {
	const op = "rate"
	if err := s.requireIdentity(op); err != nil {
		return model.RatingRecord{}, err
	}
	if s.board.Kind != model.KindProblem {
		return model.RatingRecord{}, s.fail(op, WriteFailure, ErrWrongBoard)
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return model.RatingRecord{}, s.fail(op, WriteFailure, err)
	}
	next, err := board.ApplyRating(item.Rating, s.userID, rating)
	if err != nil {
		return model.RatingRecord{}, s.fail(op, WriteFailure, err)
	}
	if err := s.store.Update(ctx, s.board.DocumentPath(id), model.RatingFields(next)); err != nil {
		return model.RatingRecord{}, s.fail(op, WriteFailure, err)
	}
	s.logger.Info("rating recorded", "id", id, "user", s.userID, "rating", rating, "mean", next.Mean)
	return next, nil
}

// Edit replaces the owner-editable fields of an item.
func (s *Session) Edit(ctx context.Context, id string, sub Submission) error {
	const op = "edit"
	if err := s.requireIdentity(op); err != nil {
		return err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return s.fail(op, WriteFailure, err)
	}
	if !item.OwnedBy(s.userID) {
		return s.fail(op, WriteFailure, ErrNotOwner)
	}
	item.Content = strings.TrimSpace(sub.Content)
	item.Answer = strings.TrimSpace(sub.Answer)
	item.Attributes = sub.Attributes
	if err := s.validate(item); err != nil {
		return s.fail(op, WriteFailure, err)
	}
	if err := s.store.Update(ctx, s.board.DocumentPath(id), model.EditFields(item)); err != nil {
		return s.fail(op, WriteFailure, err)
	}
	s.logger.Info("item edited", "id", id, "user", s.userID)
	return nil
}

func (s *Session) Delete(ctx context.Context, id string) error {
	const op = "delete"
	if err := s.requireIdentity(op); err != nil {
		return err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return s.fail(op, WriteFailure, err)
	}
	if !item.OwnedBy(s.userID) {
		return s.fail(op, WriteFailure, ErrNotOwner)
	}
	if err := s.store.Delete(ctx, s.board.DocumentPath(id)); err != nil {
		return s.fail(op, WriteFailure, err)
	}
	s.logger.Info("item deleted", "id", id, "user", s.userID)
	return nil
}

// Item reads one item straight from the store.
func (s *Session) Item(ctx context.Context, id string) (model.Item, error) {
	return s.load(ctx, id)
}

// List reads the whole board and replaces the cached items with it.
func (s *Session) List(ctx context.Context) ([]model.Item, error) {
	docs, err := s.store.List(ctx, s.board.Collection)
	if err != nil {
		return nil, err
	}
	items, err := model.DecodeItems(s.board.Kind, docs)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.items = items
	s.loaded = true
	s.mu.Unlock()
	return items, nil
}

// SetSort changes the ordering and returns to the first page.
func (s *Session) SetSort(key board.SortKey) error {
	if _, err := board.ParseSortKey(string(key), s.board.Kind); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		key = board.DefaultSort(s.board.Kind)
	}
	s.sort = key
	s.page = 0
	return nil
}

// SetPageSize changes how many items a page holds and returns to the first
// page.
func (s *Session) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = board.ClampPageSize(n)
	s.page = 0
}

// SetPage jumps to a zero-based page. Pages past the end show an empty
// window rather than wrapping.
func (s *Session) SetPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.page = n
}

// NextPage advances unless the current page is the last one.
func (s *Session) NextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page < board.TotalPages(len(s.items), s.pageSize)-1 {
		s.page++
	}
}

func (s *Session) PrevPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page > 0 {
		s.page--
	}
}

// Current renders the page the user is looking at, loading the board first
// if nothing has been delivered yet.
func (s *Session) Current(ctx context.Context) (board.Page, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.List(ctx); err != nil {
			return board.Page{}, err
		}
	}
	return s.render(), nil
}

// Watch keeps the cached items in step with the store and calls fn with
// the current page after every snapshot. It returns when ctx ends or the
// subscription fails; a failure is also passed to fn.
func (s *Session) Watch(ctx context.Context, fn func(board.Page, error)) error {
	const op = "watch"
	snaps, err := s.store.Subscribe(ctx, s.board.Collection)
	if err != nil {
		return s.fail(op, SubscriptionFailure, err)
	}
	for snap := range snaps {
		if snap.Err != nil {
			err := s.fail(op, SubscriptionFailure, snap.Err)
			fn(board.Page{}, err)
			return err
		}
		items, err := model.DecodeItems(s.board.Kind, snap.Docs)
		if err != nil {
			err = s.fail(op, SubscriptionFailure, err)
			fn(board.Page{}, err)
			return err
		}
		s.mu.Lock()
		s.items = items
		s.loaded = true
		s.mu.Unlock()
		fn(s.render(), nil)
	}
	return ctx.Err()
}

// Render re-renders the cached items, e.g. after a sort or paging change.
func (s *Session) Render() board.Page {
	return s.render()
}

func (s *Session) render() board.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.View(s.items, s.sort, s.page, s.pageSize)
}

func (s *Session) load(ctx context.Context, id string) (model.Item, error) {
	doc, err := s.store.Get(ctx, s.board.DocumentPath(id))
	if err != nil {
		return model.Item{}, err
	}
	return model.DecodeItem(s.board.Kind, doc)
}

func (s *Session) validate(item model.Item) error {
	if item.Content == "" {
		return ErrEmptyContent
	}
	if item.Kind == model.KindProblem && item.Answer == "" {
		return ErrEmptyAnswer
	}
	return nil
}

func (s *Session) requireIdentity(op string) error {
	if s.userID == "" {
		return s.fail(op, AuthFailure, board.ErrNoIdentity)
	}
	return nil
}

func (s *Session) fail(op string, kind Kind, err error) error {
	level := slog.LevelWarn
	if kind == SubscriptionFailure || !isRejection(err) {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, op+" failed", "kind", kind.String(), "user", s.userID, "err", err)
	return &Error{Kind: kind, Op: op, Err: err}
}

// isRejection reports whether err is the user's mistake rather than a
// storage problem.
func isRejection(err error) bool {
	for _, target := range []error{
		ErrNotOwner, ErrEmptyContent, ErrEmptyAnswer, ErrWrongBoard,
		board.ErrNoIdentity, board.ErrInvalidVoteType, board.ErrInvalidRating,
		store.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
