package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/mathclub/ideaboard/internal/client"
)

var members = []string{"Ada", "Emmy", "Srinivasa", "Sophie", "Kurt"}

func intp(v int) *int { return &v }

var ideas = []client.ItemInput{
	{Content: "**Pi day** relay: each runner recites the next 10 digits", Attributes: client.Attributes{MemberCount: intp(8), TimeConsumingHours: intp(2), TimeToMakeDays: intp(3)}},
	{Content: "Origami polyhedra workshop", Attributes: client.Attributes{MemberCount: intp(4), TimeConsumingHours: intp(3), TimeToMakeDays: intp(7), RequiresFunds: true}},
	{Content: "Estimation contest with a jar of beans", Attributes: client.Attributes{MemberCount: intp(2), TimeConsumingHours: intp(1), TimeToMakeDays: intp(1)}},
	{Content: "Integration bee against the physics club", Attributes: client.Attributes{MemberCount: intp(6), TimeConsumingHours: intp(2)}},
	{Content: "Build a Galton board and watch the normal distribution appear"},
}

var problems = []client.ItemInput{
	{Content: `$$\int_0^1 x^2\,dx$$`, Answer: `$$\frac{1}{3}$$`},
	{Content: `$$\int_0^{\pi} \sin x\,dx$$`, Answer: "2"},
	{Content: `$$\int \frac{dx}{1+x^2}$$`, Answer: `$$\arctan x + C$$`},
	{Content: `$$\int_0^{\infty} e^{-x^2}\,dx$$`, Answer: `$$\frac{\sqrt{\pi}}{2}$$`},
	{Content: `$$\int x e^{x}\,dx$$`, Answer: `$$(x-1)e^{x} + C$$`},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "ideaboard server URL")
	flag.Parse()

	ctx := context.Background()
	log.Printf("Seeding board at %s...\n", *baseURL)

	// The default limits (10 sign-ins and 10 submissions a minute per
	// address) fit this data set exactly.
	var clients []*client.Client
	for _, name := range members {
		c := client.New(*baseURL)
		creds, err := c.SignIn(ctx)
		if err != nil {
			log.Fatalf("sign in %s: %v", name, err)
		}
		log.Printf("✓ Signed in %s as %s", name, creds.UserID)
		clients = append(clients, c)
	}

	var ideaIDs []string
	for _, in := range ideas {
		idx := rand.Intn(len(clients))
		in.SubmitterName = members[idx]
		item, err := clients[idx].Submit(ctx, "ideas", in)
		if err != nil {
			log.Printf("✗ Failed to post idea: %v", err)
			continue
		}
		ideaIDs = append(ideaIDs, item.ID)
		log.Printf("✓ Posted idea %s (by %s)", item.ID, members[idx])

		// Small delay to spread out created_at times
		time.Sleep(50 * time.Millisecond)
	}

	var problemIDs []string
	for _, in := range problems {
		idx := rand.Intn(len(clients))
		item, err := clients[idx].Submit(ctx, "problems", in)
		if err != nil {
			log.Printf("✗ Failed to post problem: %v", err)
			continue
		}
		problemIDs = append(problemIDs, item.ID)
		log.Printf("✓ Posted problem %s (by %s)", item.ID, members[idx])
		time.Sleep(50 * time.Millisecond)
	}

	votes := 0
	for _, c := range clients {
		for _, id := range ideaIDs {
			if rand.Float32() < 0.4 {
				continue
			}
			voteType := "upvote"
			if rand.Float32() < 0.2 {
				voteType = "downvote"
			}
			if _, err := c.Vote(ctx, id, voteType); err != nil {
				log.Printf("✗ Failed to vote: %v", err)
				continue
			}
			votes++
		}
	}
	log.Printf("✓ Added %d votes", votes)

	ratings := 0
	for _, c := range clients {
		for _, id := range problemIDs {
			if rand.Float32() < 0.3 {
				continue
			}
			if _, err := c.Rate(ctx, id, rand.Intn(5)+1); err != nil {
				log.Printf("✗ Failed to rate: %v", err)
				continue
			}
			ratings++
		}
	}
	log.Printf("✓ Added %d ratings", ratings)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Members:  %d\n", len(members))
	fmt.Printf("Ideas:    %d\n", len(ideaIDs))
	fmt.Printf("Problems: %d\n", len(problemIDs))
	fmt.Println("\nView at:", *baseURL)
}
