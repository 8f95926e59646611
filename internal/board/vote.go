// Package board holds the aggregation and view rules of the idea and problem
// boards. Everything here is pure: callers load a record, apply a rule and
// write the returned record back in one update.
package board

import (
	"errors"
	"strings"

	"github.com/mathclub/ideaboard/internal/model"
)

var (
	ErrNoIdentity      = errors.New("acting user unknown")
	ErrInvalidVoteType = errors.New("vote type must be upvote or downvote")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidSortKey  = errors.New("unknown sort key")
)

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

func ParseVoteType(s string) (VoteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upvote", "up":
		return Upvote, nil
	case "downvote", "down":
		return Downvote, nil
	}
	return "", ErrInvalidVoteType
}

// ApplyVote toggles actingUser's vote in the given direction. A vote in the
// same direction is withdrawn; otherwise it is cast and any opposite vote by
// the same user is withdrawn, so a user holds at most one vote per item.
//
// The returned record never shares slices with the input and its counters
// always equal the sizes of the voter lists.
func ApplyVote(record model.VoteRecord, actingUser string, voteType VoteType) (model.VoteRecord, error) {
	if actingUser == "" {
		return record, ErrNoIdentity
	}
	if voteType != Upvote && voteType != Downvote {
		return record, ErrInvalidVoteType
	}

	same, opposite := record.Upvoters, record.Downvoters
	if voteType == Downvote {
		same, opposite = opposite, same
	}

	var nextSame, nextOpposite []string
	if containsID(same, actingUser) {
		nextSame = without(same, actingUser)
		nextOpposite = without(opposite, actingUser)
	} else {
		nextSame = append(without(same, actingUser), actingUser)
		nextOpposite = without(opposite, actingUser)
	}

	out := model.VoteRecord{Upvoters: nextSame, Downvoters: nextOpposite}
	if voteType == Downvote {
		out.Upvoters, out.Downvoters = nextOpposite, nextSame
	}
	out.Upvotes = len(out.Upvoters)
	out.Downvotes = len(out.Downvoters)
	return out, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// without returns a fresh slice holding ids minus every occurrence of id.
func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
