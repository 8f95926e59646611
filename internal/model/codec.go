package model

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Document field names shared with the browser boards.
const (
	FieldIdea          = "idea"
	FieldProblem       = "problem"
	FieldAnswer        = "answer"
	FieldSubmittedBy   = "submittedBy"
	FieldSubmitterName = "submitterName"
	FieldUpvotes       = "upvotes"
	FieldDownvotes     = "downvotes"
	FieldVotedBy       = "votedBy"
	FieldMemberCount   = "memberCount"
	FieldTimeHours     = "timeConsumingHours"
	FieldTimeDays      = "timeToMakeDays"
	FieldRequiresFunds = "requiresFunds"
	FieldRatings       = "difficultyRatings"
	FieldRatingCount   = "totalDifficultyRatings"
	FieldRatingMean    = "estimatedDifficulty"
	FieldRatingScore   = "difficultyScore"
	FieldStatus        = "status"
	FieldType          = "type"
)

type ideaDoc struct {
	Idea          string `mapstructure:"idea"`
	SubmitterName string `mapstructure:"submitterName"`
	SubmittedBy   string `mapstructure:"submittedBy"`
	Upvotes       int    `mapstructure:"upvotes"`
	Downvotes     int    `mapstructure:"downvotes"`
	VotedBy       struct {
		Up   []string `mapstructure:"up"`
		Down []string `mapstructure:"down"`
	} `mapstructure:"votedBy"`
	MemberCount        *int `mapstructure:"memberCount"`
	TimeConsumingHours *int `mapstructure:"timeConsumingHours"`
	TimeToMakeDays     *int `mapstructure:"timeToMakeDays"`
	RequiresFunds      bool `mapstructure:"requiresFunds"`
}

type problemDoc struct {
	Problem                string         `mapstructure:"problem"`
	Answer                 string         `mapstructure:"answer"`
	SubmittedBy            string         `mapstructure:"submittedBy"`
	Status                 string         `mapstructure:"status"`
	Type                   string         `mapstructure:"type"`
	DifficultyRatings      map[string]int `mapstructure:"difficultyRatings"`
	TotalDifficultyRatings int            `mapstructure:"totalDifficultyRatings"`
	EstimatedDifficulty    *float64       `mapstructure:"estimatedDifficulty"`
}

func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// DecodeItem converts a stored document into an item of the given kind.
func DecodeItem(kind Kind, doc Document) (Item, error) {
	item := Item{
		ID:        doc.ID,
		Kind:      kind,
		CreatedAt: doc.CreatedAt,
		Seq:       doc.Seq,
	}
	switch kind {
	case KindIdea:
		var d ideaDoc
		if err := decodeFields(doc.Fields, &d); err != nil {
			return Item{}, fmt.Errorf("decode idea %s: %w", doc.ID, err)
		}
		item.Content = d.Idea
		item.SubmitterName = d.SubmitterName
		item.OwnerID = d.SubmittedBy
		item.Votes = VoteRecord{
			Upvotes:    d.Upvotes,
			Downvotes:  d.Downvotes,
			Upvoters:   d.VotedBy.Up,
			Downvoters: d.VotedBy.Down,
		}
		item.Attributes = Attributes{
			MemberCount:        d.MemberCount,
			TimeConsumingHours: d.TimeConsumingHours,
			TimeToMakeDays:     d.TimeToMakeDays,
			RequiresFunds:      d.RequiresFunds,
		}
	case KindProblem:
		var d problemDoc
		if err := decodeFields(doc.Fields, &d); err != nil {
			return Item{}, fmt.Errorf("decode problem %s: %w", doc.ID, err)
		}
		item.Content = d.Problem
		item.Answer = d.Answer
		item.OwnerID = d.SubmittedBy
		item.Status = d.Status
		item.Type = d.Type
		mean := DefaultMean
		// A stored zero mean is treated as unrated, like the browser board did.
		if d.EstimatedDifficulty != nil && *d.EstimatedDifficulty != 0 {
			mean = *d.EstimatedDifficulty
		}
		ratings := d.DifficultyRatings
		if ratings == nil {
			ratings = map[string]int{}
		}
		item.Rating = RatingRecord{
			Ratings: ratings,
			Count:   d.TotalDifficultyRatings,
			Mean:    mean,
		}
	default:
		return Item{}, fmt.Errorf("unknown item kind %q", kind)
	}
	return item, nil
}

// DecodeItems decodes every document, stopping at the first failure.
func DecodeItems(kind Kind, docs []Document) ([]Item, error) {
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		item, err := DecodeItem(kind, doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// NewItemFields builds the document written when an item is first submitted.
func NewItemFields(item Item) map[string]any {
	switch item.Kind {
	case KindProblem:
		fields := RatingFields(RatingRecord{Ratings: map[string]int{}, Mean: DefaultMean})
		fields[FieldProblem] = item.Content
		fields[FieldAnswer] = item.Answer
		fields[FieldSubmittedBy] = item.OwnerID
		fields[FieldStatus] = orDefault(item.Status, "active")
		fields[FieldType] = orDefault(item.Type, "integral")
		return fields
	default:
		fields := VoteFields(VoteRecord{})
		fields[FieldIdea] = item.Content
		fields[FieldSubmitterName] = orDefault(item.SubmitterName, "Anonymous")
		fields[FieldSubmittedBy] = item.OwnerID
		for k, v := range AttributeFields(item.Attributes) {
			fields[k] = v
		}
		return fields
	}
}

// EditFields holds the owner-editable fields of an item.
func EditFields(item Item) map[string]any {
	if item.Kind == KindProblem {
		return map[string]any{
			FieldProblem: item.Content,
			FieldAnswer:  item.Answer,
		}
	}
	fields := AttributeFields(item.Attributes)
	fields[FieldIdea] = item.Content
	return fields
}

func AttributeFields(a Attributes) map[string]any {
	return map[string]any{
		FieldMemberCount:   intOrNil(a.MemberCount),
		FieldTimeHours:     intOrNil(a.TimeConsumingHours),
		FieldTimeDays:      intOrNil(a.TimeToMakeDays),
		FieldRequiresFunds: a.RequiresFunds,
	}
}

// VoteFields is the full vote write: both counters and both voter lists.
func VoteFields(v VoteRecord) map[string]any {
	return map[string]any{
		FieldUpvotes:   v.Upvotes,
		FieldDownvotes: v.Downvotes,
		FieldVotedBy: map[string]any{
			"up":   nonNil(v.Upvoters),
			"down": nonNil(v.Downvoters),
		},
	}
}

// RatingFields writes the per-user mapping together with both aggregates.
func RatingFields(r RatingRecord) map[string]any {
	ratings := make(map[string]any, len(r.Ratings))
	for k, v := range r.Ratings {
		ratings[k] = v
	}
	return map[string]any{
		FieldRatings:     ratings,
		FieldRatingCount: r.Count,
		FieldRatingMean:  r.Mean,
		FieldRatingScore: r.Mean,
	}
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
