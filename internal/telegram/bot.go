// Package telegram is the transport layer: it receives updates, feeds each
// message through the command handler and sends the reply back to the chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/VladimirNagibin/shop-list-bot/internal/command"
	"github.com/VladimirNagibin/shop-list-bot/internal/config"
	"github.com/VladimirNagibin/shop-list-bot/internal/list"
	"github.com/VladimirNagibin/shop-list-bot/internal/metrics"
	"github.com/VladimirNagibin/shop-list-bot/internal/store"
)

// Bot wraps the Telegram API and routes messages to the command handler.
type Bot struct {
	api      *tgbotapi.BotAPI
	handler  *command.Handler
	store    store.Store
	recorder *metrics.Recorder
	cfg      *config.Config
}

// NewBot initializes the Telegram bot and, when a webhook URL is configured,
// registers it with Telegram.
func NewBot(cfg *config.Config, handler *command.Handler, st store.Store, recorder *metrics.Recorder) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	slog.Info("authorized on telegram", "account", api.Self.UserName)

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("failed to build webhook config: %w", err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		slog.Info("webhook set", "response", resp.Description)
	}

	return &Bot{
		api:      api,
		handler:  handler,
		store:    st,
		recorder: recorder,
		cfg:      cfg,
	}, nil
}

// RegisterHandlers registers the webhook, health and metrics endpoints.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if b.recorder != nil {
		mux.Handle("/metrics", b.recorder.Handler())
	}
}

// Run polls for updates when no webhook is configured. Blocks until ctx is
// canceled.
func (b *Bot) Run(ctx context.Context) {
	if b.cfg.TelegramWebhookURL != "" {
		<-ctx.Done()
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	slog.Info("long polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message != nil {
				b.processMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		slog.Warn("failed to parse update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if update.Message == nil {
		return
	}
	b.processMessage(r.Context(), update.Message)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	if !allowed(b.cfg.TelegramAllowedUserIDs, msg.From.ID) {
		slog.Warn("unauthorized access attempt",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		return
	}

	// Admin-only runtime report, handled outside the command grammar.
	if strings.HasPrefix(msg.Text, "/stats") {
		b.handleStats(msg)
		return
	}

	ownerID := strconv.FormatInt(msg.Chat.ID, 10)
	owner := list.Owner{
		ID:        ownerID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
	}
	if err := b.store.UpsertOwner(ctx, owner); err != nil {
		slog.Warn("failed to upsert owner", "owner_id", ownerID, "error", err)
	}

	reply := b.handler.Handle(ctx, ownerID, msg.Text)
	b.send(msg.Chat.ID, reply)
}

func (b *Bot) handleStats(msg *tgbotapi.Message) {
	if b.cfg.AdminTelegramID == 0 || msg.From.ID != b.cfg.AdminTelegramID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DBPath))
	b.send(msg.Chat.ID, formatSysHealth(health))
}

func (b *Bot) send(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "Markdown"
	if _, err := b.api.Send(reply); err != nil {
		slog.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func allowed(allowlist []int64, userID int64) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, id := range allowlist {
		if id == userID {
			return true
		}
	}
	return false
}

func formatSysHealth(h metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *System Health*\n\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", h.Goroutines))
	sb.WriteString(fmt.Sprintf("• GC cycles: %d\n", h.NumGC))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", h.DataDiskSize))
	return sb.String()
}
