// Package render turns item text into HTML. Text is Markdown with hard line
// breaks; $$...$$ math is passed through untouched for the browser to
// typeset.
package render

import (
	"html"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.CommonExtensions | blackfriday.HardLineBreak

const (
	mathOpen  = "\uE000"
	mathClose = "\uE001"
)

var (
	mathSegment = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	placeholder = regexp.MustCompile("\uE000[0-9]+\uE001")
)

type Renderer struct {
	rawHTML bool
	policy  *bluemonday.Policy
}

// New returns a renderer. With rawHTML set, HTML written in an item is
// emitted as is; otherwise the output is sanitized.
func New(rawHTML bool) *Renderer {
	return &Renderer{rawHTML: rawHTML, policy: bluemonday.UGCPolicy()}
}

func (r *Renderer) HTML(text string) template.HTML {
	// Placeholders are wrapped in private-use runes that are stripped from
	// the input, so user text can never collide with one.
	text = strings.NewReplacer(mathOpen, "", mathClose, "").Replace(text)

	var math []string
	masked := mathSegment.ReplaceAllStringFunc(text, func(m string) string {
		math = append(math, m)
		return mathOpen + strconv.Itoa(len(math)-1) + mathClose
	})

	out := blackfriday.Run([]byte(masked), blackfriday.WithExtensions(extensions))
	if !r.rawHTML {
		out = r.policy.SanitizeBytes(out)
	}

	result := placeholder.ReplaceAllStringFunc(string(out), func(p string) string {
		i, err := strconv.Atoi(strings.Trim(p, mathOpen+mathClose))
		if err != nil || i >= len(math) {
			return ""
		}
		return html.EscapeString(math[i])
	})
	return template.HTML(result)
}
