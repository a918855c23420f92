// Package cli is a thin interactive front end over the sync orchestrator.
// All real behavior lives in the api/auth/cache/sync packages; this layer
// only parses commands and prints results.
package cli

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/api"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/auth"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/cache"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/config"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/prefs"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/search"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
	syncpkg "github.com/bookmarkeddit/bookmarkeddit/internal/client/sync"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
)

// CLI wires the client stack together behind an interactive prompt.
type CLI struct {
	cfg    *config.Config
	logger logger.Logger
	in     io.Reader
	out    io.Writer

	kv     *storage.KV
	api    *api.Client
	tokens *auth.Store
	orch   *syncpkg.Orchestrator
}

func New(cfg *config.Config, log logger.Logger, in io.Reader, out io.Writer) *CLI {
	return &CLI{cfg: cfg, logger: log, in: in, out: out}
}

// Run opens the local state, builds the stack, and serves the prompt
// until quit or EOF.
func (c *CLI) Run(ctx context.Context) error {
	kv, err := storage.Open(ctx, c.cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()
	c.kv = kv

	c.api = api.New(api.Options{BaseURL: c.cfg.ProxyURL, Logger: c.logger})
	c.tokens = auth.NewStore(kv, c.api, c.logger, nil)
	c.orch = syncpkg.New(syncpkg.Options{
		API:       c.api,
		Sessions:  c.tokens,
		Cache:     cache.New(kv, nil),
		Logger:    c.logger,
		Notify:    c.printEvent,
		PageLimit: c.cfg.PageLimit,
	})

	fmt.Fprintln(c.out, "bookmarkeddit - type 'help' for commands")
	if !c.tokens.LoggedIn(ctx) {
		fmt.Fprintln(c.out, "Not logged in. Start with 'login'.")
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		c.dispatch(ctx, cmd, args, scanner)
	}
}

func (c *CLI) dispatch(ctx context.Context, cmd string, args []string, scanner *bufio.Scanner) {
	switch cmd {
	case "help":
		c.printHelp()
	case "login":
		c.login(ctx, scanner)
	case "logout":
		c.logout(ctx)
	case "whoami":
		c.whoami(ctx)
	case "sync":
		if c.orch.State() == syncpkg.StateIdle {
			c.orch.Start(ctx)
		} else {
			c.orch.Refresh(ctx)
		}
	case "retry":
		c.orch.RetryNow(ctx)
	case "cancel":
		c.orch.CancelRetry()
	case "list":
		c.list(args)
	case "communities":
		c.communities()
	case "filter":
		c.filter(args)
	case "search":
		c.search(args)
	case "find":
		c.find(args)
	case "unsave":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: unsave <id>")
			return
		}
		c.orch.Unsave(ctx, args[0])
	case "prefs":
		c.prefs(ctx, args)
	case "status":
		fmt.Fprintf(c.out, "state: %s", c.orch.State())
		if msg := c.orch.LastError(); msg != "" {
			fmt.Fprintf(c.out, " (%s)", msg)
		}
		fmt.Fprintln(c.out)
	default:
		fmt.Fprintf(c.out, "unknown command %q - type 'help'\n", cmd)
	}
}

func (c *CLI) printHelp() {
	fmt.Fprint(c.out, `Commands:
  login                authorize with Reddit and store the session
  logout               clear the stored session and cache
  whoami               show the logged-in user
  sync                 fetch all saved items (cache-first)
  retry                retry now instead of waiting out a rate limit
  cancel               cancel a pending automatic retry
  list [n]             show up to n filtered items (default 20)
  communities          list subreddits with item counts
  filter <sub...>      filter by subreddit; 'filter clear' resets
  filter nsfw <mode>   only | none | any
  search <text>        filter by title/description substring
  find <text>          fuzzy-rank items by relevance (typo tolerant)
  unsave <id>          remove an item from your saved list
  prefs [key value]    show or set theme/layout/sort/filters
  status               show sync state
  quit
`)
}

func (c *CLI) login(ctx context.Context, scanner *bufio.Scanner) {
	state := make([]byte, 16)
	_, _ = rand.Read(state)

	fmt.Fprintln(c.out, "Open this URL in a browser and authorize the app:")
	fmt.Fprintln(c.out, "  "+api.LoginURL(c.cfg.ClientID, c.cfg.RedirectURI, hex.EncodeToString(state)))
	fmt.Fprint(c.out, "Paste the 'code' parameter from the redirect: ")

	if !scanner.Scan() {
		return
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		fmt.Fprintln(c.out, "No code entered.")
		return
	}

	tok, err := c.api.ExchangeCode(ctx, code, c.cfg.RedirectURI)
	if err != nil {
		fmt.Fprintf(c.out, "Login failed: %v\n", err)
		return
	}
	if err := c.tokens.SaveSession(ctx, tok); err != nil {
		fmt.Fprintf(c.out, "Failed to store session: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Logged in. Run 'sync' to fetch your saved items.")
}

func (c *CLI) logout(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		fmt.Fprintf(c.out, "Failed to clear session: %v\n", err)
		return
	}
	c.api.InvalidateProfile()
	fmt.Fprintln(c.out, "Logged out.")
}

func (c *CLI) whoami(ctx context.Context) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Not logged in: %v\n", err)
		return
	}
	me, err := c.api.Me(ctx, token)
	if err != nil {
		fmt.Fprintf(c.out, "Failed to fetch profile: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "u/%s\n", me.Name)
}

func (c *CLI) list(args []string) {
	limit := 20
	if len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	items := c.orch.Filtered()
	c.sortItems(items)
	if len(items) == 0 {
		fmt.Fprintln(c.out, "No items. Run 'sync' first, or loosen the filter.")
		return
	}
	for i, it := range items {
		if i >= limit {
			fmt.Fprintf(c.out, "... and %d more\n", len(items)-limit)
			break
		}
		marker := "P"
		if it.Type == "Comment" {
			marker = "C"
		}
		fmt.Fprintf(c.out, "[%s] %-12s r/%-20s %s\n", marker, it.ID, it.Subreddit, truncate(it.Title, 70))
	}
}

func (c *CLI) sortItems(items []normalize.SavedItem) {
	p := prefs.Load(context.Background(), c.kv)
	switch p.SortBy {
	case "oldest":
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })
	case "score":
		sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	case "comments":
		sort.SliceStable(items, func(i, j int) bool { return items[i].CommentCount > items[j].CommentCount })
	default: // newest
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt > items[j].CreatedAt })
	}
}

func (c *CLI) communities() {
	counts := syncpkg.Communities(c.orch.Items())
	if len(counts) == 0 {
		fmt.Fprintln(c.out, "No items. Run 'sync' first.")
		return
	}
	for _, cc := range counts {
		fmt.Fprintf(c.out, "%4d  r/%s\n", cc.Count, cc.Name)
	}
}

func (c *CLI) filter(args []string) {
	sel := c.orch.Filter()
	if len(args) == 1 && args[0] == "clear" {
		sel.Communities = nil
		sel.Types = nil
		sel.NSFW = nil
		sel.Search = ""
		c.orch.SetFilter(sel)
		fmt.Fprintln(c.out, "Filter cleared.")
		return
	}
	if len(args) == 0 {
		nsfw := "any"
		if sel.NSFW != nil {
			if *sel.NSFW {
				nsfw = "only"
			} else {
				nsfw = "none"
			}
		}
		fmt.Fprintf(c.out, "communities=%v types=%v nsfw=%s search=%q\n",
			sel.Communities, sel.Types, nsfw, sel.Search)
		return
	}
	if args[0] == "nsfw" {
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: filter nsfw <only|none|any>")
			return
		}
		switch args[1] {
		case "only":
			v := true
			sel.NSFW = &v
		case "none":
			v := false
			sel.NSFW = &v
		case "any":
			sel.NSFW = nil
		default:
			fmt.Fprintln(c.out, "usage: filter nsfw <only|none|any>")
			return
		}
		c.orch.SetFilter(sel)
		fmt.Fprintf(c.out, "%d items match\n", len(c.orch.Filtered()))
		return
	}
	sel.Communities = sel.Communities[:0]
	for _, a := range args {
		sel.Communities = append(sel.Communities, strings.TrimPrefix(a, "r/"))
	}
	c.orch.SetFilter(sel)
	fmt.Fprintf(c.out, "Filtering on %v (%d items)\n", sel.Communities, len(c.orch.Filtered()))
}

func (c *CLI) search(args []string) {
	sel := c.orch.Filter()
	sel.Search = strings.Join(args, " ")
	c.orch.SetFilter(sel)
	fmt.Fprintf(c.out, "%d items match\n", len(c.orch.Filtered()))
}

func (c *CLI) find(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: find <text>")
		return
	}
	matches := search.Rank(strings.Join(args, " "), c.orch.Items())
	if len(matches) == 0 {
		fmt.Fprintln(c.out, "No matches.")
		return
	}
	for i, m := range matches {
		if i >= 10 {
			fmt.Fprintf(c.out, "... and %d more\n", len(matches)-10)
			break
		}
		fmt.Fprintf(c.out, "%6.1f  %-12s r/%-20s %s\n",
			m.TotalScore, m.Item.ID, m.Item.Subreddit, truncate(m.Item.Title, 60))
	}
}

func (c *CLI) prefs(ctx context.Context, args []string) {
	p := prefs.Load(ctx, c.kv)
	if len(args) == 0 {
		fmt.Fprintf(c.out, "theme=%s layout=%s sort=%s filters=%v\n", p.Theme, p.Layout, p.SortBy, p.ShowFilters)
		return
	}
	if len(args) != 2 {
		fmt.Fprintln(c.out, "usage: prefs <theme|layout|sort|filters> <value>")
		return
	}
	switch args[0] {
	case "theme":
		p.Theme = args[1]
	case "layout":
		p.Layout = args[1]
	case "sort":
		p.SortBy = args[1]
	case "filters":
		p.ShowFilters = args[1] == "true"
	default:
		fmt.Fprintf(c.out, "unknown pref %q\n", args[0])
		return
	}
	if err := prefs.Save(ctx, c.kv, p); err != nil {
		fmt.Fprintf(c.out, "Failed to save prefs: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Saved.")
}

func (c *CLI) printEvent(ev syncpkg.Event) {
	switch ev.Kind {
	case syncpkg.EventRetryCountdown:
		// One line per second would flood the terminal.
		if ev.RetryIn%10 == 0 {
			fmt.Fprintf(c.out, "retrying in %ds...\n", ev.RetryIn)
		}
	case syncpkg.EventItemsChanged:
		fmt.Fprintf(c.out, "Updated: %d new, %d removed\n", ev.Added, ev.Removed)
	case syncpkg.EventFilterCleared:
		if len(ev.Communities) > 0 {
			fmt.Fprintf(c.out, "Filter removed (no items left): %v\n", ev.Communities)
		} else {
			fmt.Fprintln(c.out, ev.Message)
		}
	default:
		fmt.Fprintln(c.out, ev.Message)
	}
}

// truncate shortens s to at most n runes. Slicing on runes keeps
// multi-byte titles intact.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
