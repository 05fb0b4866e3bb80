package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/metrics"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
)

const helpText = `🛒 *Shop List Bot*

/newlist <name> — create a list
/dellist <name> — delete a list
/add <list>, <item>[, <quantity>[, <price>]] — add or update an item
/bought <list>, <item> — mark purchased
/unbought <list>, <item> — mark not purchased
/items <list> — show a list
/lists — show your lists
/total <list> — sum of item prices
/find <query> — search items across your lists
/import <list>, <url> — pull items from a web page

Arguments are separated by commas, so names may contain spaces.`

// ItemFetcher pulls item candidates out of a web page for /import.
type ItemFetcher interface {
	Fetch(ctx context.Context, url string) ([]list.Item, error)
}

// Handler maps one inbound command to exactly one store call and renders the
// reply. It is transport-agnostic: the Telegram layer feeds it (owner, text)
// pairs.
type Handler struct {
	store    store.Store
	fetcher  ItemFetcher
	recorder *metrics.Recorder
}

// NewHandler creates a Handler. fetcher and recorder may be nil; /import is
// then answered with an explanation and metrics are skipped.
func NewHandler(s store.Store, fetcher ItemFetcher, recorder *metrics.Recorder) *Handler {
	return &Handler{store: s, fetcher: fetcher, recorder: recorder}
}

// Handle processes one message and returns the reply text (Telegram
// Markdown). It never returns an error: every failure becomes a user-facing
// message.
func (h *Handler) Handle(ctx context.Context, ownerID, text string) string {
	start := time.Now()

	cmd, err := Parse(text)
	if err != nil {
		h.observe("unknown", "unrecognized", start)
		return helpText
	}

	reply, opErr := h.dispatch(ctx, ownerID, cmd)

	status := "ok"
	if opErr != nil {
		status = "error"
		slog.Info("command failed",
			"command", cmd.Kind.String(),
			"owner_id", ownerID,
			"error", opErr,
		)
		reply = errorReply(opErr)
	}
	h.observe(cmd.Kind.String(), status, start)
	return reply
}

// dispatch performs the single store call for the command. The switch is
// exhaustive over Kind.
func (h *Handler) dispatch(ctx context.Context, ownerID string, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindStart, KindHelp:
		return helpText, nil

	case KindCreateList:
		l, err := h.store.CreateList(ctx, ownerID, cmd.List)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Created list *%s*", l.Name), nil

	case KindDeleteList:
		if err := h.store.DeleteList(ctx, ownerID, cmd.List); err != nil {
			return "", err
		}
		return fmt.Sprintf("🗑 Deleted list *%s*", cmd.List), nil

	case KindAddItem:
		item := list.Item{Name: cmd.Item, Quantity: cmd.Quantity, Price: cmd.Price}
		stored, err := h.store.AddItem(ctx, ownerID, cmd.List, item)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ *%s* — %s (%s)", cmd.List, stored.Name, stored.Quantity), nil

	case KindMarkPurchased, KindMarkUnpurchased:
		purchased := cmd.Kind == KindMarkPurchased
		if err := h.store.MarkPurchased(ctx, ownerID, cmd.List, cmd.Item, purchased); err != nil {
			return "", err
		}
		if purchased {
			return fmt.Sprintf("☑️ Bought: %s", cmd.Item), nil
		}
		return fmt.Sprintf("⬜ Back on the list: %s", cmd.Item), nil

	case KindListItems:
		items, err := h.store.ListItems(ctx, ownerID, cmd.List)
		if err != nil {
			return "", err
		}
		return formatItems(cmd.List, items), nil

	case KindListLists:
		summaries, err := h.store.ListAll(ctx, ownerID)
		if err != nil {
			return "", err
		}
		return formatSummaries(summaries), nil

	case KindTotal:
		items, err := h.store.ListItems(ctx, ownerID, cmd.List)
		if err != nil {
			return "", err
		}
		l := list.ShoppingList{Items: items}
		total, priced := l.Total()
		if priced == 0 {
			return fmt.Sprintf("💰 *%s*: no items have a price yet.", cmd.List), nil
		}
		return fmt.Sprintf("💰 *%s*: %s (%d of %d items priced)",
			cmd.List, total.StringFixed(2), priced, len(items)), nil

	case KindFind:
		found, err := h.store.SearchItems(ctx, ownerID, cmd.Item)
		if err != nil {
			return "", err
		}
		return formatFound(cmd.Item, found), nil

	case KindImport:
		return h.importItems(ctx, ownerID, cmd)
	}

	return helpText, nil
}

// importItems fetches candidates from the URL and adds each through the
// store, so list invariants (case-insensitive upsert) hold for imports too.
func (h *Handler) importItems(ctx context.Context, ownerID string, cmd Command) (string, error) {
	if h.fetcher == nil {
		return "⚠️ Import is not enabled on this bot.", nil
	}

	candidates, err := h.fetcher.Fetch(ctx, cmd.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", cmd.URL, err)
	}
	if len(candidates) == 0 {
		return "🔍 No items found on that page.", nil
	}

	added := 0
	for _, it := range candidates {
		if _, err := h.store.AddItem(ctx, ownerID, cmd.List, it); err != nil {
			if errors.Is(err, list.ErrNotFound) {
				return "", err
			}
			slog.Warn("skipping imported item", "item", it.Name, "error", err)
			continue
		}
		added++
	}
	return fmt.Sprintf("📥 Imported %d of %d items into *%s*", added, len(candidates), cmd.List), nil
}

func (h *Handler) observe(command, status string, start time.Time) {
	if h.recorder != nil {
		h.recorder.Observe(command, status, time.Since(start))
	}
}

// errorReply converts store errors to user-facing messages.
func errorReply(err error) string {
	switch {
	case errors.Is(err, list.ErrDuplicateList):
		return "⛔ You already have a list with that name."
	case errors.Is(err, list.ErrNotFound):
		return fmt.Sprintf("🔍 %s not found.", capitalize(trimSentinel(err)))
	case errors.Is(err, list.ErrInvalidInput):
		return fmt.Sprintf("⛔ %s.", capitalize(trimSentinel(err)))
	}
	return "❌ Something went wrong, please try again."
}

// trimSentinel strips the wrapped sentinel prefix, leaving the descriptive
// part: `list "x"` from `not found: list "x"`.
func trimSentinel(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && msg[i+2:] != "" {
		return msg[i+2:]
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatItems(listName string, items []list.Item) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🛒 *%s*\n\n", listName))
	if len(items) == 0 {
		sb.WriteString("_The list is empty._")
		return sb.String()
	}
	for _, it := range items {
		box := "⬜"
		if it.Purchased {
			box = "☑️"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s", box, it.Name, it.Quantity))
		if it.Price.Valid {
			sb.WriteString(fmt.Sprintf(" · %s", it.Price.Decimal.StringFixed(2)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatFound(query string, found []list.FoundItem) string {
	if len(found) == 0 {
		return fmt.Sprintf("🔍 Nothing named like %q on your lists.", query)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔎 *Search: %s*\n\n", query))
	for _, hit := range found {
		box := "⬜"
		if hit.Item.Purchased {
			box = "☑️"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s · %s\n", box, hit.Item.Name, hit.Item.Quantity, hit.ListName))
	}
	return sb.String()
}

func formatSummaries(summaries []list.ListSummary) string {
	if len(summaries) == 0 {
		return "📋 You have no lists yet. Create one with /newlist <name>."
	}
	var sb strings.Builder
	sb.WriteString("📋 *Your lists*\n\n")
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("• %s (%d items)\n", s.Name, s.ItemCount))
	}
	return sb.String()
}
