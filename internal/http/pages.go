package httpapp

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/mathclub/ideaboard/internal/board"
	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/session"
)

var pageSizes = []int{5, 10, 20, 50}

type card struct {
	ContentHTML   template.HTML
	AnswerHTML    template.HTML
	IsProblem     bool
	SubmitterName string
	CreatedAt     time.Time

	Upvotes   int
	Downvotes int
	Net       int

	Difficulty board.Difficulty
	Mean       string
	Reviews    string

	MemberCount        string
	TimeConsumingHours string
	TimeToMakeDays     string
	RequiresFunds      bool
}

func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request, b session.Board) {
	sess := s.newSession(r, b, "")
	q := r.URL.Query()
	if err := s.applyView(sess, q.Get("sort"), q.Get("page"), q.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := sess.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	cards := make([]card, 0, len(page.Items))
	for _, item := range page.Items {
		cards = append(cards, s.card(item))
	}
	title := "Math Club Ideas"
	if b.Kind == model.KindProblem {
		title = "Integral Problems"
	}
	data := map[string]any{
		"Title":     title,
		"Board":     boardName(b),
		"Page":      page,
		"Cards":     cards,
		"SortKeys":  board.SortKeysFor(b.Kind),
		"PageSizes": pageSizes,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Board.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("render board page", "err", err)
	}
}

func (s *Server) card(item model.Item) card {
	c := card{
		ContentHTML:   s.render.HTML(item.Content),
		IsProblem:     item.Kind == model.KindProblem,
		SubmitterName: item.SubmitterName,
		CreatedAt:     item.CreatedAt,
		Upvotes:       item.Votes.Upvotes,
		Downvotes:     item.Votes.Downvotes,
		Net:           item.Votes.Net(),
		RequiresFunds: item.Attributes.RequiresFunds,

		MemberCount:        optionalInt(item.Attributes.MemberCount),
		TimeConsumingHours: optionalInt(item.Attributes.TimeConsumingHours),
		TimeToMakeDays:     optionalInt(item.Attributes.TimeToMakeDays),
	}
	if c.IsProblem {
		c.AnswerHTML = s.render.HTML(item.Answer)
		c.Difficulty = board.DifficultyLevel(item.Rating.Mean)
		c.Mean = board.FormatMean(item.Rating.Mean)
		c.Reviews = board.ReviewsLabel(item.Rating.Count)
	}
	return c
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
