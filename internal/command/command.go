// Package command turns inbound chat text into shopping-list operations.
//
// Parsing and handling are split: Parse produces a tagged Command so the
// handler can switch exhaustively over kinds, and unrecognized input is an
// explicit error rather than a fallthrough.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnrecognized marks input that is not a known command. The handler
// answers it with the help text instead of an error reply.
var ErrUnrecognized = errors.New("unrecognized command")

// Kind enumerates the supported commands.
type Kind int

const (
	KindStart Kind = iota
	KindHelp
	KindCreateList
	KindDeleteList
	KindAddItem
	KindMarkPurchased
	KindMarkUnpurchased
	KindListItems
	KindListLists
	KindTotal
	KindFind
	KindImport
)

// String returns the command name as typed by the user, used as a metric
// label.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindHelp:
		return "help"
	case KindCreateList:
		return "newlist"
	case KindDeleteList:
		return "dellist"
	case KindAddItem:
		return "add"
	case KindMarkPurchased:
		return "bought"
	case KindMarkUnpurchased:
		return "unbought"
	case KindListItems:
		return "items"
	case KindListLists:
		return "lists"
	case KindTotal:
		return "total"
	case KindFind:
		return "find"
	case KindImport:
		return "import"
	}
	return "unknown"
}

// Command is one parsed inbound command.
type Command struct {
	Kind     Kind
	List     string
	Item     string
	Quantity string
	Price    decimal.NullDecimal
	URL      string
}

// Parse maps raw message text to a Command. Arguments are comma-separated
// so list and item names may contain spaces:
//
//	/add Groceries, Olive oil, 1 bottle, 8.99
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
	}

	name, payload := splitCommand(text[1:])
	args := splitArgs(payload)

	switch name {
	case "start":
		return Command{Kind: KindStart}, nil
	case "help":
		return Command{Kind: KindHelp}, nil
	case "lists":
		return Command{Kind: KindListLists}, nil

	case "newlist", "dellist", "items", "total":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: /%s needs a list name", ErrUnrecognized, name)
		}
		kind := map[string]Kind{
			"newlist": KindCreateList,
			"dellist": KindDeleteList,
			"items":   KindListItems,
			"total":   KindTotal,
		}[name]
		return Command{Kind: kind, List: args[0]}, nil

	case "add":
		if len(args) < 2 || len(args) > 4 {
			return Command{}, fmt.Errorf("%w: /add needs a list and an item", ErrUnrecognized)
		}
		cmd := Command{Kind: KindAddItem, List: args[0], Item: args[1]}
		if len(args) >= 3 {
			cmd.Quantity = args[2]
		}
		if len(args) == 4 {
			price, err := decimal.NewFromString(args[3])
			if err != nil {
				return Command{}, fmt.Errorf("%w: price %q is not a number", ErrUnrecognized, args[3])
			}
			cmd.Price = decimal.NullDecimal{Decimal: price, Valid: true}
		}
		return cmd, nil

	case "find":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: /find needs a search query", ErrUnrecognized)
		}
		return Command{Kind: KindFind, Item: args[0]}, nil

	case "bought", "unbought":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: /%s needs a list and an item", ErrUnrecognized, name)
		}
		kind := KindMarkPurchased
		if name == "unbought" {
			kind = KindMarkUnpurchased
		}
		return Command{Kind: kind, List: args[0], Item: args[1]}, nil

	case "import":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: /import needs a list and a url", ErrUnrecognized)
		}
		if !strings.HasPrefix(args[1], "http://") && !strings.HasPrefix(args[1], "https://") {
			return Command{}, fmt.Errorf("%w: %q is not a url", ErrUnrecognized, args[1])
		}
		return Command{Kind: KindImport, List: args[0], URL: args[1]}, nil
	}

	return Command{}, fmt.Errorf("%w: /%s", ErrUnrecognized, name)
}

// splitCommand separates the command name from its payload and strips the
// @botname suffix Telegram appends in group chats.
func splitCommand(s string) (name, payload string) {
	name = s
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		name, payload = s[:i], strings.TrimSpace(s[i+1:])
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), payload
}

// splitArgs splits a payload on commas, trimming whitespace and dropping
// empty fields.
func splitArgs(payload string) []string {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	var args []string
	for _, part := range strings.Split(payload, ",") {
		if part = strings.TrimSpace(part); part != "" {
			args = append(args, part)
		}
	}
	return args
}
