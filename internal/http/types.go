package httpapp

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/session"
)

// ItemRequest is the body of submit and edit requests. Answer applies to
// problems; the attribute fields apply to ideas.
type ItemRequest struct {
	Content            string `json:"content"`
	Answer             string `json:"answer,omitempty"`
	SubmitterName      string `json:"submitter_name,omitempty"`
	MemberCount        *int   `json:"member_count,omitempty"`
	TimeConsumingHours *int   `json:"time_consuming_hours,omitempty"`
	TimeToMakeDays     *int   `json:"time_to_make_days,omitempty"`
	RequiresFunds      bool   `json:"requires_funds,omitempty"`
}

func (r ItemRequest) submission() session.Submission {
	return session.Submission{
		Content:       r.Content,
		Answer:        r.Answer,
		SubmitterName: r.SubmitterName,
		Attributes: model.Attributes{
			MemberCount:        r.MemberCount,
			TimeConsumingHours: r.TimeConsumingHours,
			TimeToMakeDays:     r.TimeToMakeDays,
			RequiresFunds:      r.RequiresFunds,
		},
	}
}

// ItemResponse is an item as seen by one caller.
type ItemResponse struct {
	model.Item
	ContentHTML string `json:"content_html"`
	Net         int    `json:"net"`
	Difficulty  string `json:"difficulty,omitempty"`
	Mine        bool   `json:"mine"`
	MyVote      string `json:"my_vote,omitempty"`
	MyRating    int    `json:"my_rating,omitempty"`
}

type PageResponse struct {
	Board      string          `json:"board"`
	Items      []ItemResponse  `json:"items"`
	Sort       board.SortKey   `json:"sort"`
	SortKeys   []board.SortKey `json:"sort_keys"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	HasPrev    bool            `json:"has_prev"`
	HasNext    bool            `json:"has_next"`
	Summary    string          `json:"summary"`
}

func (s *Server) itemResponse(item model.Item, userID string) ItemResponse {
	resp := ItemResponse{
		Item:        item,
		ContentHTML: string(s.render.HTML(item.Content)),
		Net:         item.Votes.Net(),
		Mine:        item.OwnedBy(userID),
	}
	if item.Kind == model.KindProblem {
		resp.Difficulty = board.DifficultyLevel(item.Rating.Mean).Label
		if v, ok := item.Rating.UserRating(userID); ok && userID != "" {
			resp.MyRating = v
		}
	}
	if userID != "" {
		switch {
		case item.Votes.HasUpvoted(userID):
			resp.MyVote = string(board.Upvote)
		case item.Votes.HasDownvoted(userID):
			resp.MyVote = string(board.Downvote)
		}
	}
	return resp
}

func (s *Server) pageResponse(b session.Board, page board.Page, userID string) PageResponse {
	items := make([]ItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, s.itemResponse(item, userID))
	}
	return PageResponse{
		Board:      boardName(b),
		Items:      items,
		Sort:       page.Sort,
		SortKeys:   board.SortKeysFor(b.Kind),
		Total:      page.Total,
		TotalPages: page.TotalPages,
		Page:       page.Page,
		PageSize:   page.PageSize,
		HasPrev:    page.HasPrev,
		HasNext:    page.HasNext,
		Summary:    page.Summary(),
	}
}

func boardName(b session.Board) string {
	if b.Kind == model.KindProblem {
		return "problems"
	}
	return "ideas"
}

// statusRecorder remembers the response status for the request log. It
// passes Hijack through so WebSocket upgrades still work.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
