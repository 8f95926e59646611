package httpapp

import (
	"embed"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

type Templates struct {
	Board *template.Template
}

func loadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "just now"
			}
			return humanize.Time(t)
		},
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"add":   func(a, b int) int { return a + b },
	}

	layoutContent, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}

	makePage := func(pageName string) (*template.Template, error) {
		pageContent, err := templateFS.ReadFile("templates/" + pageName + ".html")
		if err != nil {
			return nil, err
		}
		t, err := template.New("layout").Funcs(funcs).Parse(string(layoutContent))
		if err != nil {
			return nil, err
		}
		return t.Parse(string(pageContent))
	}

	boardPage, err := makePage("board")
	if err != nil {
		return nil, err
	}
	return &Templates{Board: boardPage}, nil
}
