package model

import "time"

type Kind string

const (
	KindIdea    Kind = "idea"
	KindProblem Kind = "problem"
)

// DefaultMean is the difficulty reported before anyone has rated a problem.
const DefaultMean = 3.0

// Document is a record as held by the document store. Fields carries the
// caller-supplied data; ID, Seq and CreatedAt are assigned by the store.
type Document struct {
	ID        string
	Path      string
	Seq       int64
	CreatedAt time.Time
	Fields    map[string]any
}

type Item struct {
	ID            string       `json:"id"`
	Kind          Kind         `json:"kind"`
	Content       string       `json:"content"`
	Answer        string       `json:"answer,omitempty"`
	SubmitterName string       `json:"submitter_name,omitempty"`
	OwnerID       string       `json:"owner_id"`
	CreatedAt     time.Time    `json:"created_at"`
	Seq           int64        `json:"seq"`
	Status        string       `json:"status,omitempty"`
	Type          string       `json:"type,omitempty"`
	Votes         VoteRecord   `json:"votes"`
	Rating        RatingRecord `json:"rating"`
	Attributes    Attributes   `json:"attributes"`
}

// Attributes are the optional planning fields of an idea. Nil means the
// submitter left the field out.
type Attributes struct {
	MemberCount        *int `json:"member_count"`
	TimeConsumingHours *int `json:"time_consuming_hours"`
	TimeToMakeDays     *int `json:"time_to_make_days"`
	RequiresFunds      bool `json:"requires_funds"`
}

type VoteRecord struct {
	Upvotes    int      `json:"upvotes"`
	Downvotes  int      `json:"downvotes"`
	Upvoters   []string `json:"upvoters"`
	Downvoters []string `json:"downvoters"`
}

func (v VoteRecord) Net() int {
	return v.Upvotes - v.Downvotes
}

func (v VoteRecord) HasUpvoted(userID string) bool {
	return contains(v.Upvoters, userID)
}

func (v VoteRecord) HasDownvoted(userID string) bool {
	return contains(v.Downvoters, userID)
}

type RatingRecord struct {
	Ratings map[string]int `json:"ratings"`
	Count   int            `json:"count"`
	Mean    float64        `json:"mean"`
}

func (r RatingRecord) UserRating(userID string) (int, bool) {
	v, ok := r.Ratings[userID]
	return v, ok
}

func (i Item) OwnedBy(userID string) bool {
	return userID != "" && i.OwnerID == userID
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
