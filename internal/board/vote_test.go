package board

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mathclub/ideaboard/internal/model"
)

func disjoint(t *testing.T, v model.VoteRecord) {
	t.Helper()
	for _, up := range v.Upvoters {
		require.NotContains(t, v.Downvoters, up, "user %s holds both votes", up)
	}
}

func TestApplyVoteCastsAndWithdraws(t *testing.T) {
	rec, err := ApplyVote(model.VoteRecord{}, "u1", Upvote)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Upvotes)
	require.Equal(t, 0, rec.Downvotes)
	require.Equal(t, []string{"u1"}, rec.Upvoters)
	require.Empty(t, rec.Downvoters)

	rec, err = ApplyVote(rec, "u1", Upvote)
	require.NoError(t, err)
	require.Equal(t, 0, rec.Upvotes)
	require.Empty(t, rec.Upvoters)
}

func TestApplyVoteIsAnInvolution(t *testing.T) {
	start := model.VoteRecord{
		Upvotes:    2,
		Downvotes:  1,
		Upvoters:   []string{"a", "b"},
		Downvoters: []string{"c"},
	}
	for _, user := range []string{"a", "c", "x"} {
		for _, vt := range []VoteType{Upvote, Downvote} {
			once, err := ApplyVote(start, user, vt)
			require.NoError(t, err)
			twice, err := ApplyVote(once, user, vt)
			require.NoError(t, err)

			// Only a user without an opposite vote returns to the start.
			if (vt == Upvote && user == "c") || (vt == Downvote && user == "a") {
				continue
			}
			require.ElementsMatch(t, start.Upvoters, twice.Upvoters, "user %s %s", user, vt)
			require.ElementsMatch(t, start.Downvoters, twice.Downvoters, "user %s %s", user, vt)
			require.Equal(t, start.Upvotes, twice.Upvotes)
			require.Equal(t, start.Downvotes, twice.Downvotes)
		}
	}
}

func TestApplyVoteSwitchMovesOneMembership(t *testing.T) {
	start := model.VoteRecord{
		Upvotes:    1,
		Downvotes:  2,
		Upvoters:   []string{"a"},
		Downvoters: []string{"b", "c"},
	}
	rec, err := ApplyVote(start, "b", Upvote)
	require.NoError(t, err)
	require.Equal(t, start.Upvotes+1, rec.Upvotes)
	require.Equal(t, start.Downvotes-1, rec.Downvotes)
	require.ElementsMatch(t, []string{"a", "b"}, rec.Upvoters)
	require.ElementsMatch(t, []string{"c"}, rec.Downvoters)
	require.Equal(t, 1, rec.Net())
	disjoint(t, rec)

	rec, err = ApplyVote(rec, "a", Downvote)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b"}, rec.Upvoters)
	require.ElementsMatch(t, []string{"c", "a"}, rec.Downvoters)
	disjoint(t, rec)
}

func TestApplyVoteKeepsSetsDisjoint(t *testing.T) {
	users := []string{"a", "b", "c", "d"}
	rec := model.VoteRecord{}
	for i := 0; i < 200; i++ {
		user := users[(i*7)%len(users)]
		vt := Upvote
		if (i*13)%3 == 0 {
			vt = Downvote
		}
		next, err := ApplyVote(rec, user, vt)
		require.NoError(t, err)
		disjoint(t, next)
		require.Equal(t, len(next.Upvoters), next.Upvotes)
		require.Equal(t, len(next.Downvoters), next.Downvotes)
		rec = next
	}
}

func TestApplyVoteDoesNotAliasInput(t *testing.T) {
	up := make([]string, 1, 4)
	up[0] = "a"
	start := model.VoteRecord{Upvotes: 1, Upvoters: up}
	_, err := ApplyVote(start, "b", Upvote)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, start.Upvoters)
	require.Equal(t, "a", up[:cap(up)][0])
	require.Equal(t, "", up[:cap(up)][1])
}

func TestApplyVoteErrors(t *testing.T) {
	start := model.VoteRecord{Upvotes: 1, Upvoters: []string{"a"}}

	rec, err := ApplyVote(start, "", Upvote)
	require.ErrorIs(t, err, ErrNoIdentity)
	require.Equal(t, start, rec)

	_, err = ApplyVote(start, "a", VoteType("sideways"))
	require.ErrorIs(t, err, ErrInvalidVoteType)
}

func TestParseVoteType(t *testing.T) {
	for in, want := range map[string]VoteType{
		"upvote":   Upvote,
		"up":       Upvote,
		"DOWNVOTE": Downvote,
		" down ":   Downvote,
	} {
		got, err := ParseVoteType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := ParseVoteType("meh")
	require.ErrorIs(t, err, ErrInvalidVoteType)
}
