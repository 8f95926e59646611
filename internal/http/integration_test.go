package httpapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mathclub/ideaboard/internal/auth"
	"github.com/mathclub/ideaboard/internal/config"
	"github.com/mathclub/ideaboard/internal/rate"
	"github.com/mathclub/ideaboard/internal/store/sqlite"
)

type testClient struct {
	server *httptest.Server
	client *http.Client
}

func testConfig() config.Config {
	return config.Config{
		AppID:      "test-board",
		Backend:    "sqlite",
		HashSecret: "test-hash",
		TokenTTL:   time.Hour,
		PageSize:   10,
		RateLimits: config.RateLimits{SubmitPerMinute: 1000, VotePerMinute: 1000, RatePerMinute: 1000},
	}
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	return newTestClientWithConfig(t, testConfig())
}

func newTestClientWithConfig(t *testing.T, cfg config.Config) *testClient {
	t.Helper()
	server := newTestServer(t, cfg, rate.NewMemory())
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return &testClient{server: ts, client: ts.Client()}
}

func newTestServer(t *testing.T, cfg config.Config, limiter rate.Limiter) *Server {
	t.Helper()
	dsnName := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	authSvc, err := auth.NewService(cfg.HashSecret, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, err := NewServer(st, authSvc, limiter, cfg, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func (c *testClient) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *testClient) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	return c.do(t, http.MethodGet, path, nil, token)
}

func decodeJSON[T any](t *testing.T, resp *http.Response, out *T) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("json decode: %v (body %s)", err, string(body))
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

// signIn returns a fresh anonymous identity.
func signIn(t *testing.T, c *testClient) auth.Credentials {
	t.Helper()
	resp := c.do(t, http.MethodPost, "/api/auth/anonymous", nil, "")
	expectStatus(t, resp, http.StatusOK)
	var creds auth.Credentials
	decodeJSON(t, resp, &creds)
	if creds.UserID == "" || creds.Token == "" {
		t.Fatalf("incomplete credentials %+v", creds)
	}
	return creds
}

func TestAnonymousSignInAndRefresh(t *testing.T) {
	c := newTestClient(t)
	first := signIn(t, c)
	second := signIn(t, c)
	if first.UserID == second.UserID {
		t.Fatalf("expected distinct identities")
	}

	resp := c.do(t, http.MethodPost, "/api/auth/anonymous", nil, first.Token)
	expectStatus(t, resp, http.StatusOK)
	var refreshed auth.Credentials
	decodeJSON(t, resp, &refreshed)
	if refreshed.UserID != first.UserID {
		t.Fatalf("refresh changed identity: %s -> %s", first.UserID, refreshed.UserID)
	}

	resp = c.do(t, http.MethodPost, "/api/auth/anonymous", nil, "garbage")
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestIdeaLifecycle(t *testing.T) {
	c := newTestClient(t)
	alice := signIn(t, c)
	bob := signIn(t, c)

	resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{
		"content":        "  Pi day relay  ",
		"submitter_name": "Alice",
		"member_count":   6,
		"requires_funds": true,
	}, alice.Token)
	expectStatus(t, resp, http.StatusCreated)
	var created ItemResponse
	decodeJSON(t, resp, &created)
	if created.ID == "" || created.Content != "Pi day relay" || !created.Mine {
		t.Fatalf("unexpected created item %+v", created)
	}
	if created.Attributes.MemberCount == nil || *created.Attributes.MemberCount != 6 {
		t.Fatalf("member count not stored: %+v", created.Attributes)
	}
	itemPath := "/api/ideas/items/" + created.ID

	resp = c.get(t, "/api/ideas/items", bob.Token)
	expectStatus(t, resp, http.StatusOK)
	var page PageResponse
	decodeJSON(t, resp, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Mine {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Sort != "recent" {
		t.Fatalf("expected default sort recent, got %s", page.Sort)
	}

	// Bob upvotes, then upvotes again to withdraw.
	resp = c.do(t, http.MethodPost, itemPath+"/vote", map[string]string{"type": "upvote"}, bob.Token)
	expectStatus(t, resp, http.StatusOK)
	var votes struct {
		Upvotes   int `json:"upvotes"`
		Downvotes int `json:"downvotes"`
	}
	decodeJSON(t, resp, &votes)
	if votes.Upvotes != 1 {
		t.Fatalf("expected 1 upvote, got %+v", votes)
	}
	resp = c.get(t, itemPath, bob.Token)
	expectStatus(t, resp, http.StatusOK)
	var seen ItemResponse
	decodeJSON(t, resp, &seen)
	if seen.MyVote != "upvote" || seen.Net != 1 {
		t.Fatalf("expected my_vote upvote and net 1, got %+v", seen)
	}
	resp = c.do(t, http.MethodPost, itemPath+"/vote", map[string]string{"type": "upvote"}, bob.Token)
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &votes)
	if votes.Upvotes != 0 {
		t.Fatalf("expected vote withdrawn, got %+v", votes)
	}

	resp = c.do(t, http.MethodPost, itemPath+"/vote", map[string]string{"type": "sideways"}, bob.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	// Only the owner edits and deletes.
	resp = c.do(t, http.MethodPatch, itemPath, map[string]any{"content": "hijacked"}, bob.Token)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
	resp = c.do(t, http.MethodPatch, itemPath, map[string]any{"content": "Pi day relay race", "member_count": 8}, alice.Token)
	expectStatus(t, resp, http.StatusOK)
	var edited ItemResponse
	decodeJSON(t, resp, &edited)
	if edited.Content != "Pi day relay race" || *edited.Attributes.MemberCount != 8 {
		t.Fatalf("edit not applied: %+v", edited)
	}
	if edited.SubmitterName != "Alice" {
		t.Fatalf("edit should keep submitter name, got %q", edited.SubmitterName)
	}

	resp = c.do(t, http.MethodDelete, itemPath, nil, bob.Token)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
	resp = c.do(t, http.MethodDelete, itemPath, nil, alice.Token)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = c.get(t, itemPath, "")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
	resp = c.do(t, http.MethodPost, itemPath+"/vote", map[string]string{"type": "upvote"}, bob.Token)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestProblemRatingFlow(t *testing.T) {
	c := newTestClient(t)
	owner := signIn(t, c)
	rater := signIn(t, c)

	resp := c.do(t, http.MethodPost, "/api/problems/items", map[string]any{
		"content": `$$\int_0^1 x\,dx$$`,
	}, owner.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(t, http.MethodPost, "/api/problems/items", map[string]any{
		"content": `$$\int_0^1 x\,dx$$`,
		"answer":  "1/2",
	}, owner.Token)
	expectStatus(t, resp, http.StatusCreated)
	var created ItemResponse
	decodeJSON(t, resp, &created)
	if created.Difficulty != "Medium" {
		t.Fatalf("unrated problem should read Medium, got %q", created.Difficulty)
	}
	if !strings.Contains(created.ContentHTML, `$$\int_0^1 x\,dx$$`) {
		t.Fatalf("math not preserved: %s", created.ContentHTML)
	}
	itemPath := "/api/problems/items/" + created.ID

	resp = c.do(t, http.MethodPost, itemPath+"/rating", map[string]int{"rating": 6}, rater.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(t, http.MethodPost, itemPath+"/rating", map[string]int{"rating": 5}, rater.Token)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = c.do(t, http.MethodPost, itemPath+"/rating", map[string]int{"rating": 1}, owner.Token)
	expectStatus(t, resp, http.StatusOK)
	var rating struct {
		Count int     `json:"count"`
		Mean  float64 `json:"mean"`
	}
	decodeJSON(t, resp, &rating)
	if rating.Count != 2 || rating.Mean != 3 {
		t.Fatalf("unexpected rating %+v", rating)
	}

	// Rating again replaces the earlier rating.
	resp = c.do(t, http.MethodPost, itemPath+"/rating", map[string]int{"rating": 4}, rater.Token)
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &rating)
	if rating.Count != 2 || rating.Mean != 2.5 {
		t.Fatalf("unexpected rating after change %+v", rating)
	}

	resp = c.get(t, itemPath, rater.Token)
	expectStatus(t, resp, http.StatusOK)
	var seen ItemResponse
	decodeJSON(t, resp, &seen)
	if seen.MyRating != 4 || seen.Difficulty != "Easy" {
		t.Fatalf("unexpected view %+v", seen)
	}

	// Problems take ratings, not votes.
	resp = c.do(t, http.MethodPost, itemPath+"/vote", map[string]string{"type": "upvote"}, rater.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestRatingAnIdeaIsRejected(t *testing.T) {
	c := newTestClient(t)
	user := signIn(t, c)
	resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{"content": "Estimation contest"}, user.Token)
	expectStatus(t, resp, http.StatusCreated)
	var created ItemResponse
	decodeJSON(t, resp, &created)

	resp = c.do(t, http.MethodPost, "/api/ideas/items/"+created.ID+"/rating", map[string]int{"rating": 3}, user.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestWritesRequireToken(t *testing.T) {
	c := newTestClient(t)
	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/ideas/items", map[string]any{"content": "x"}},
		{http.MethodPatch, "/api/ideas/items/abc", map[string]any{"content": "x"}},
		{http.MethodDelete, "/api/ideas/items/abc", nil},
		{http.MethodPost, "/api/ideas/items/abc/vote", map[string]string{"type": "upvote"}},
		{http.MethodPost, "/api/problems/items/abc/rating", map[string]int{"rating": 3}},
	}
	for _, tc := range cases {
		resp := c.do(t, tc.method, tc.path, tc.body, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestListSortingAndPaging(t *testing.T) {
	c := newTestClient(t)
	user := signIn(t, c)
	voter := signIn(t, c)

	var ids []string
	for i := 0; i < 5; i++ {
		resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{"content": fmt.Sprintf("idea %d", i)}, user.Token)
		expectStatus(t, resp, http.StatusCreated)
		var item ItemResponse
		decodeJSON(t, resp, &item)
		ids = append(ids, item.ID)
	}
	resp := c.do(t, http.MethodPost, "/api/ideas/items/"+ids[1]+"/vote", map[string]string{"type": "upvote"}, voter.Token)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = c.get(t, "/api/ideas/items?sort=likes&page_size=2", "")
	expectStatus(t, resp, http.StatusOK)
	var page PageResponse
	decodeJSON(t, resp, &page)
	if page.Items[0].ID != ids[1] {
		t.Fatalf("expected most upvoted first, got %s", page.Items[0].ID)
	}
	if page.TotalPages != 3 || !page.HasNext || page.HasPrev {
		t.Fatalf("unexpected paging %+v", page)
	}

	resp = c.get(t, "/api/ideas/items?page=2&page_size=2", "")
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &page)
	if len(page.Items) != 1 || page.Items[0].ID != ids[0] {
		t.Fatalf("expected oldest idea alone on the last page, got %+v", page.Items)
	}
	if page.Summary != "Page 3 of 3 (5-5 of 5)" {
		t.Fatalf("unexpected summary %q", page.Summary)
	}

	resp = c.get(t, "/api/ideas/items?sort=hardestFirst", "")
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUnknownFieldsRejected(t *testing.T) {
	c := newTestClient(t)
	user := signIn(t, c)
	resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{"content": "x", "votes": 99}, user.Token)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestSubmitRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimits.SubmitPerMinute = 1
	c := newTestClientWithConfig(t, cfg)
	user := signIn(t, c)

	resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{"content": "first"}, user.Token)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{"content": "second"}, user.Token)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	resp.Body.Close()
}

func TestBoardPages(t *testing.T) {
	c := newTestClient(t)
	user := signIn(t, c)
	resp := c.do(t, http.MethodPost, "/api/ideas/items", map[string]any{
		"content":        "**Origami** polyhedra",
		"submitter_name": "Dana",
		"member_count":   4,
	}, user.Token)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = c.do(t, http.MethodPost, "/api/problems/items", map[string]any{
		"content": "$$\\int_0^\\pi \\sin x\\,dx$$",
		"answer":  "2",
	}, user.Token)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = c.get(t, "/", "")
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"<strong>Origami</strong>", "by Dana", "Members: 4", "Page 1 of 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("ideas page missing %q", want)
		}
	}

	resp = c.get(t, "/problems?sort=easiestFirst", "")
	expectStatus(t, resp, http.StatusOK)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"Integral Problems", "Medium", "0 reviews", `\sin x`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("problems page missing %q", want)
		}
	}

	resp = c.get(t, "/problems?sort=likes", "")
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.get(t, "/elsewhere", "")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestVersionAndOpenAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Version = "1.2.3"
	c := newTestClientWithConfig(t, cfg)

	resp := c.get(t, "/api/version", "")
	expectStatus(t, resp, http.StatusOK)
	var version map[string]string
	decodeJSON(t, resp, &version)
	if version["version"] != "1.2.3" {
		t.Fatalf("unexpected version payload %v", version)
	}

	resp = c.get(t, "/api/openapi.json", "")
	expectStatus(t, resp, http.StatusOK)
	var doc map[string]any
	decodeJSON(t, resp, &doc)
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("openapi document has no paths")
	}
	if _, ok := paths["/api/{board}/items"]; !ok {
		t.Fatalf("openapi document missing items route")
	}
}
