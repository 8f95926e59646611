package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/mathclub/ideaboard/internal/client"
)

var boardFlag = &cli.StringFlag{
	Name:    "board",
	Aliases: []string{"b"},
	Usage:   "ideas or problems",
	Value:   "ideas",
}

func checkBoard(c *cli.Context) (string, error) {
	board := c.String("board")
	if board != "ideas" && board != "problems" {
		return "", fmt.Errorf("unknown board %q (want ideas or problems)", board)
	}
	return board, nil
}

func signinCommand() *cli.Command {
	return &cli.Command{
		Name:    "signin",
		Aliases: []string{"login"},
		Usage:   "get an anonymous identity, or refresh the saved one",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "new", Usage: "discard the saved identity and start a new one"},
		},
		Action: func(c *cli.Context) error {
			api := newClient(c.String("url"))
			if c.Bool("new") {
				api.Use(client.Credentials{})
			}
			refreshing := api.Token != ""
			creds, err := api.SignIn(c.Context)
			if err != nil {
				return err
			}
			if err := saveCLIConfig(CLIConfig{
				BaseURL:   api.BaseURL,
				UserID:    creds.UserID,
				Token:     creds.Token,
				ExpiresAt: creds.ExpiresAt,
			}); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}
			if refreshing {
				fmt.Printf("✓ Refreshed identity %s\n", creds.UserID)
			} else {
				fmt.Printf("✓ Signed in as %s\n", creds.UserID)
			}
			fmt.Printf("  Server:  %s\n", api.BaseURL)
			fmt.Printf("  Expires: %s\n", creds.ExpiresAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"whoami"},
		Usage:   "show the saved identity",
		Action: func(c *cli.Context) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				fmt.Println("Status: Not signed in")
				fmt.Println("\nRun: ideaboard signin")
				return nil
			}
			fmt.Printf("User:   %s\n", cfg.UserID)
			fmt.Printf("Server: %s\n", cfg.BaseURL)
			if !cfg.ExpiresAt.IsZero() && cfg.ExpiresAt.Before(time.Now()) {
				fmt.Println("Token:  Expired")
				fmt.Println("\nRun: ideaboard signin")
			} else {
				fmt.Printf("Token:  Valid until %s\n", cfg.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"read"},
		Usage:   "list a board",
		Flags: []cli.Flag{
			boardFlag,
			&cli.StringFlag{Name: "sort", Usage: "sort key (server default when empty)"},
			&cli.IntFlag{Name: "page", Usage: "page number, starting at 1", Value: 1},
			&cli.IntFlag{Name: "page-size", Usage: "items per page"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "keep printing the page as it changes"},
		},
		Action: func(c *cli.Context) error {
			board, err := checkBoard(c)
			if err != nil {
				return err
			}
			api := newClient(c.String("url"))
			opts := client.ListOptions{
				Sort:     c.String("sort"),
				Page:     c.Int("page") - 1,
				PageSize: c.Int("page-size"),
			}
			if c.Bool("watch") {
				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
				defer stop()
				err := api.Watch(ctx, board, opts, func(p *client.Page) {
					fmt.Print("\033[H\033[2J")
					printPage(p)
				})
				if errors.Is(err, ctx.Err()) {
					return nil
				}
				return err
			}
			page, err := api.List(c.Context, board, opts)
			if err != nil {
				return err
			}
			printPage(page)
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show one item",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{boardFlag},
		Action: func(c *cli.Context) error {
			board, err := checkBoard(c)
			if err != nil {
				return err
			}
			id := c.Args().First()
			if id == "" {
				return errors.New("usage: ideaboard show [--board problems] <id>")
			}
			item, err := newClient(c.String("url")).Get(c.Context, board, id)
			if err != nil {
				return err
			}
			printItem(0, item, true)
			return nil
		},
	}
}

func itemFlags() []cli.Flag {
	return []cli.Flag{
		boardFlag,
		&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "idea text or problem statement (markdown, $$...$$ for math)", Required: true},
		&cli.StringFlag{Name: "answer", Usage: "answer to the problem"},
		&cli.StringFlag{Name: "name", Usage: "name shown on an idea"},
		&cli.IntFlag{Name: "members", Usage: "members needed"},
		&cli.IntFlag{Name: "hours", Usage: "hours the activity takes"},
		&cli.IntFlag{Name: "days", Usage: "days to prepare"},
		&cli.BoolFlag{Name: "funds", Usage: "requires funds"},
	}
}

func itemInput(c *cli.Context) client.ItemInput {
	in := client.ItemInput{
		Content:       c.String("content"),
		Answer:        c.String("answer"),
		SubmitterName: c.String("name"),
	}
	in.RequiresFunds = c.Bool("funds")
	if c.IsSet("members") {
		v := c.Int("members")
		in.MemberCount = &v
	}
	if c.IsSet("hours") {
		v := c.Int("hours")
		in.TimeConsumingHours = &v
	}
	if c.IsSet("days") {
		v := c.Int("days")
		in.TimeToMakeDays = &v
	}
	return in
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:    "post",
		Aliases: []string{"submit"},
		Usage:   "submit an idea or a problem",
		Flags:   itemFlags(),
		Action: func(c *cli.Context) error {
			board, err := checkBoard(c)
			if err != nil {
				return err
			}
			api, err := loadAuthenticatedClient(c.String("url"))
			if err != nil {
				return err
			}
			item, err := api.Submit(c.Context, board, itemInput(c))
			if err != nil {
				return err
			}
			fmt.Printf("✓ Posted %s %s\n", item.Kind, item.ID)
			return nil
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "replace the content of your item",
		ArgsUsage: "<id>",
		Flags:     itemFlags(),
		Action: func(c *cli.Context) error {
			board, err := checkBoard(c)
			if err != nil {
				return err
			}
			id := c.Args().First()
			if id == "" {
				return errors.New("usage: ideaboard edit [--board problems] --content ... <id>")
			}
			api, err := loadAuthenticatedClient(c.String("url"))
			if err != nil {
				return err
			}
			if _, err := api.Edit(c.Context, board, id, itemInput(c)); err != nil {
				return err
			}
			fmt.Printf("✓ Edited %s\n", id)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "delete your item",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{boardFlag},
		Action: func(c *cli.Context) error {
			board, err := checkBoard(c)
			if err != nil {
				return err
			}
			id := c.Args().First()
			if id == "" {
				return errors.New("usage: ideaboard delete [--board problems] <id>")
			}
			api, err := loadAuthenticatedClient(c.String("url"))
			if err != nil {
				return err
			}
			if err := api.Delete(c.Context, board, id); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted %s\n", id)
			return nil
		},
	}
}

func voteCommand() *cli.Command {
	return &cli.Command{
		Name:      "vote",
		Usage:     "upvote or downvote an idea; repeating a vote withdraws it",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "up", Usage: "upvote"},
			&cli.BoolFlag{Name: "down", Usage: "downvote"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" || c.Bool("up") == c.Bool("down") {
				return errors.New("usage: ideaboard vote --up|--down <id>")
			}
			voteType := "upvote"
			if c.Bool("down") {
				voteType = "downvote"
			}
			api, err := loadAuthenticatedClient(c.String("url"))
			if err != nil {
				return err
			}
			votes, err := api.Vote(c.Context, id, voteType)
			if err != nil {
				return err
			}
			fmt.Printf("✓ ▲ %d ▼ %d (net %d)\n", votes.Upvotes, votes.Downvotes, votes.Upvotes-votes.Downvotes)
			return nil
		},
	}
}

func rateCommand() *cli.Command {
	return &cli.Command{
		Name:      "rate",
		Usage:     "rate the difficulty of a problem from 1 to 5",
		ArgsUsage: "<id> <1-5>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: ideaboard rate <id> <1-5>")
			}
			var rating int
			if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &rating); err != nil {
				return fmt.Errorf("rating must be a number from 1 to 5: %w", err)
			}
			api, err := loadAuthenticatedClient(c.String("url"))
			if err != nil {
				return err
			}
			out, err := api.Rate(c.Context, c.Args().First(), rating)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Mean %.1f/5 from %d ratings\n", out.Mean, out.Count)
			return nil
		},
	}
}

func printPage(p *client.Page) {
	title := "Math Club Ideas"
	if p.Board == "problems" {
		title = "Integral Problems"
	}
	fmt.Printf("\n%s (%s)\n\n", title, p.Sort)
	for i, item := range p.Items {
		printItem(p.Page*p.PageSize+i+1, &item, false)
	}
	if len(p.Items) == 0 {
		fmt.Println("Nothing here yet.")
	}
	fmt.Printf("\n%s\n", p.Summary)
}

func printItem(n int, item *client.Item, full bool) {
	prefix := "   "
	if n > 0 {
		fmt.Printf("%d. %s\n", n, firstLine(item.Content))
	} else {
		fmt.Printf("\n%s\n\n", item.Content)
		prefix = "  "
	}
	mine := ""
	if item.Mine {
		mine = " | yours"
	}
	if item.Kind == "problem" {
		reviews := fmt.Sprintf("%d reviews", item.Rating.Count)
		if item.Rating.Count == 1 {
			reviews = "1 review"
		}
		fmt.Printf("%s%s %.1f/5 | %s | %s | #%s%s\n", prefix, item.Difficulty, item.Rating.Mean, reviews, humanize.Time(item.CreatedAt), item.ID, mine)
		if full && item.Answer != "" {
			fmt.Printf("%sAnswer: %s\n", prefix, item.Answer)
		}
	} else {
		fmt.Printf("%s▲ %d ▼ %d | by %s | %s | #%s%s\n", prefix, item.Votes.Upvotes, item.Votes.Downvotes, item.SubmitterName, humanize.Time(item.CreatedAt), item.ID, mine)
		if full {
			a := item.Attributes
			if a.MemberCount != nil {
				fmt.Printf("%sMembers: %d\n", prefix, *a.MemberCount)
			}
			if a.TimeConsumingHours != nil {
				fmt.Printf("%sTime: %dh\n", prefix, *a.TimeConsumingHours)
			}
			if a.TimeToMakeDays != nil {
				fmt.Printf("%sSetup: %dd\n", prefix, *a.TimeToMakeDays)
			}
			if a.RequiresFunds {
				fmt.Printf("%sRequires funds\n", prefix)
			}
		}
	}
	if !full {
		fmt.Println()
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 80 {
		return line[:77] + "..."
	}
	return line
}
