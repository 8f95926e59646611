package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"
	"github.com/mathclub/ideaboard/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBoards(t *testing.T) {
	ideas, problems := Boards("math-club-ideas-board-v1")
	require.Equal(t, model.KindIdea, ideas.Kind)
	require.Equal(t, "artifacts/math-club-ideas-board-v1/public/data/ideas", ideas.Collection)
	require.Equal(t, model.KindProblem, problems.Kind)
	require.Equal(t, "artifacts/math-club-ideas-board-v1/public/data/integralProblems", problems.Collection)
}

func TestSubmitAndVote(t *testing.T) {
	st := newTestStore(t)
	ideas, _ := Boards("app")
	ctx := context.Background()

	alice := New(st, ideas, "alice", nil)
	bob := New(st, ideas, "bob", nil)

	item, err := alice.Submit(ctx, Submission{Content: "  Math trail around campus  "})
	require.NoError(t, err)
	require.Equal(t, "Math trail around campus", item.Content)
	require.Equal(t, "Anonymous", item.SubmitterName)
	require.Equal(t, "alice", item.OwnerID)

	votes, err := bob.Vote(ctx, item.ID, board.Upvote)
	require.NoError(t, err)
	require.Equal(t, 1, votes.Upvotes)

	votes, err = alice.Vote(ctx, item.ID, board.Downvote)
	require.NoError(t, err)
	require.Equal(t, 1, votes.Upvotes)
	require.Equal(t, 1, votes.Downvotes)

	votes, err = bob.Vote(ctx, item.ID, board.Downvote)
	require.NoError(t, err)
	require.Equal(t, 0, votes.Upvotes)
	require.Equal(t, 2, votes.Downvotes)

	stored, err := alice.Item(ctx, item.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, stored.Votes.Downvoters)
	require.Empty(t, stored.Votes.Upvoters)
	require.Equal(t, -2, stored.Votes.Net())
}

func TestRateProblem(t *testing.T) {
	st := newTestStore(t)
	_, problems := Boards("app")
	ctx := context.Background()

	owner := New(st, problems, "owner", nil)
	item, err := owner.Submit(ctx, Submission{Content: `$$\int_0^1 x^2\,dx$$`, Answer: "1/3"})
	require.NoError(t, err)
	require.Equal(t, 0, item.Rating.Count)
	require.Equal(t, 3.0, item.Rating.Mean)
	require.Equal(t, "active", item.Status)
	require.Equal(t, "integral", item.Type)

	r, err := New(st, problems, "u1", nil).Rate(ctx, item.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 1, r.Count)
	require.InDelta(t, 5.0, r.Mean, 1e-9)

	u2 := New(st, problems, "u2", nil)
	_, err = u2.Rate(ctx, item.ID, 1)
	require.NoError(t, err)
	r, err = u2.Rate(ctx, item.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, r.Count)
	require.InDelta(t, 3.5, r.Mean, 1e-9)

	stored, err := owner.Item(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"u1": 5, "u2": 2}, stored.Rating.Ratings)
	require.InDelta(t, 3.5, stored.Rating.Mean, 1e-9)

	_, err = u2.Rate(ctx, item.ID, 6)
	require.ErrorIs(t, err, board.ErrInvalidRating)
	require.Equal(t, WriteFailure, KindOf(err))
}

func TestValidationAndBoardRules(t *testing.T) {
	st := newTestStore(t)
	ideas, problems := Boards("app")
	ctx := context.Background()

	_, err := New(st, ideas, "u", nil).Submit(ctx, Submission{Content: "   "})
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = New(st, problems, "u", nil).Submit(ctx, Submission{Content: "x"})
	require.ErrorIs(t, err, ErrEmptyAnswer)

	idea, err := New(st, ideas, "u", nil).Submit(ctx, Submission{Content: "idea"})
	require.NoError(t, err)
	_, err = New(st, ideas, "u", nil).Rate(ctx, idea.ID, 3)
	require.ErrorIs(t, err, ErrWrongBoard)

	problem, err := New(st, problems, "u", nil).Submit(ctx, Submission{Content: "p", Answer: "a"})
	require.NoError(t, err)
	_, err = New(st, problems, "u", nil).Vote(ctx, problem.ID, board.Upvote)
	require.ErrorIs(t, err, ErrWrongBoard)

	_, err = New(st, problems, "u", nil).Rate(ctx, idea.ID, 3)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = New(st, ideas, "", nil).Vote(ctx, idea.ID, board.Upvote)
	require.ErrorIs(t, err, board.ErrNoIdentity)
	require.Equal(t, AuthFailure, KindOf(err))

	_, err = New(st, ideas, "u", nil).Vote(ctx, "missing", board.Upvote)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOwnershipOnEditAndDelete(t *testing.T) {
	st := newTestStore(t)
	ideas, _ := Boards("app")
	ctx := context.Background()

	owner := New(st, ideas, "owner", nil)
	other := New(st, ideas, "other", nil)

	item, err := owner.Submit(ctx, Submission{Content: "Origami polyhedra"})
	require.NoError(t, err)

	hours := 3
	err = other.Edit(ctx, item.ID, Submission{Content: "hijacked"})
	require.ErrorIs(t, err, ErrNotOwner)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "edit", serr.Op)

	require.NoError(t, owner.Edit(ctx, item.ID, Submission{
		Content:    "Origami polyhedra workshop",
		Attributes: model.Attributes{TimeConsumingHours: &hours, RequiresFunds: true},
	}))
	edited, err := owner.Item(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Origami polyhedra workshop", edited.Content)
	require.Equal(t, 3, *edited.Attributes.TimeConsumingHours)
	require.True(t, edited.Attributes.RequiresFunds)

	require.ErrorIs(t, other.Delete(ctx, item.ID), ErrNotOwner)
	require.NoError(t, owner.Delete(ctx, item.ID))
	_, err = owner.Item(ctx, item.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestViewState(t *testing.T) {
	st := newTestStore(t)
	ideas, _ := Boards("app")
	ctx := context.Background()
	s := New(st, ideas, "u", nil)

	for i := 0; i < 23; i++ {
		_, err := s.Submit(ctx, Submission{Content: fmt.Sprintf("idea %d", i)})
		require.NoError(t, err)
	}

	page, err := s.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 10)
	require.False(t, page.HasPrev)

	s.NextPage()
	s.NextPage()
	s.NextPage()
	page = s.Render()
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 3)
	require.Equal(t, "Page 3 of 3 (21-23 of 23)", page.Summary())

	s.PrevPage()
	require.Equal(t, 1, s.Render().Page)

	require.NoError(t, s.SetSort(board.SortLikes))
	require.Equal(t, 0, s.Render().Page)
	require.ErrorIs(t, s.SetSort(board.SortHardestFirst), board.ErrInvalidSortKey)

	s.NextPage()
	s.SetPageSize(5)
	page = s.Render()
	require.Equal(t, 0, page.Page)
	require.Equal(t, 5, page.TotalPages)

	s.SetPage(math.MaxInt)
	s.NextPage()
	page = s.Render()
	require.Empty(t, page.Items)
	require.False(t, page.HasNext)
	s.PrevPage()
	require.Empty(t, s.Render().Items)
}

func TestWatchFollowsSnapshots(t *testing.T) {
	st := newTestStore(t)
	ideas, _ := Boards("app")
	s := New(st, ideas, "u", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var totals []int
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(p board.Page, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				totals = append(totals, p.Total)
			}
		})
	}()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(totals) > 0
	})
	_, err := s.Submit(context.Background(), Submission{Content: "live"})
	require.NoError(t, err)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return totals[len(totals)-1] == 1
	})

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchReportsSubscriptionFailure(t *testing.T) {
	st := newTestStore(t)
	s := New(st, Board{Kind: model.KindIdea, Collection: "bad/path"}, "u", nil)
	err := s.Watch(context.Background(), func(board.Page, error) {})
	require.ErrorIs(t, err, store.ErrInvalidPath)
	require.Equal(t, SubscriptionFailure, KindOf(err))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
