package notifier

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
	"kvartaly_monitor/storage"
)

const pollTimeoutSec = 50

// Acknowledger resolves a plain reply against the pending alert.
type Acknowledger interface {
	Acknowledge(ctx context.Context, chatID, firstName string) bool
	HasPending() bool
}

// Checker runs an on-demand scan and reports aggregate state.
type Checker interface {
	CheckProfile(ctx context.Context, profile *config.SearchProfile) (*models.ScanResult, error)
	Stats(ctx context.Context) (*models.MonitorStats, error)
}

// Bot long-polls the Telegram API and serves the command surface. Any
// non-command text counts as an acknowledgment when an alert is pending.
type Bot struct {
	client  *Client
	store   storage.Store
	cfg     *config.Config
	alerts  Acknowledger
	checker Checker
}

func NewBot(client *Client, store storage.Store, cfg *config.Config, alerts Acknowledger, checker Checker) *Bot {
	return &Bot{
		client:  client,
		store:   store,
		cfg:     cfg,
		alerts:  alerts,
		checker: checker,
	}
}

// Run polls until the context is cancelled. Poll errors back off and retry;
// the bot never takes the daemon down.
func (b *Bot) Run(ctx context.Context) {
	log.Println("Bot update loop started")
	var offset int64

	for {
		select {
		case <-ctx.Done():
			log.Println("Bot update loop stopped")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("getUpdates failed: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, upd.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	text := strings.TrimSpace(msg.Text)

	if !strings.HasPrefix(text, "/") {
		b.handleReply(ctx, msg, chatID)
		return
	}

	command := strings.Fields(text)[0]
	// Strip the @botname suffix used in group chats.
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	if err := b.store.RecordBotUsage(ctx, chatID, command); err != nil {
		log.Printf("Failed to record bot usage: %v", err)
	}

	switch command {
	case "/start":
		b.handleStart(ctx, chatID)
	case "/subscribe":
		b.handleSubscribe(ctx, msg, chatID)
	case "/unsubscribe":
		b.handleUnsubscribe(ctx, chatID)
	case "/status":
		b.handleStatus(ctx, chatID)
	case "/chatid":
		b.reply(ctx, chatID, fmt.Sprintf("Ваш chat ID: `%s`", chatID))
	case "/check":
		b.handleCheck(ctx, chatID)
	default:
		b.reply(ctx, chatID, "Неизвестная команда. /start — список команд.")
	}
}

// handleReply treats a plain message from a monitored recipient as a
// potential acknowledgment. Strangers cannot silence alerts.
func (b *Bot) handleReply(ctx context.Context, msg *Message, chatID string) {
	if !b.isMonitoredRecipient(ctx, chatID) {
		return
	}
	firstName := ""
	if msg.From != nil {
		firstName = msg.From.FirstName
	}
	if b.alerts.Acknowledge(ctx, chatID, firstName) {
		return // Acknowledge already confirmed to the responder
	}
	// No pending alert; nothing to do with free-form text.
}

func (b *Bot) isMonitoredRecipient(ctx context.Context, chatID string) bool {
	for _, id := range config.ParseChatIDs(b.cfg.Telegram.AdminChatID) {
		if id == chatID {
			return true
		}
	}
	ok, err := b.store.IsSubscriber(ctx, chatID)
	if err != nil {
		log.Printf("IsSubscriber failed for %s: %v", chatID, err)
		return false
	}
	return ok
}

func (b *Bot) handleStart(ctx context.Context, chatID string) {
	subscribed, err := b.store.IsSubscriber(ctx, chatID)
	if err != nil {
		log.Printf("IsSubscriber failed for %s: %v", chatID, err)
	}
	b.reply(ctx, chatID, FormatWelcome(subscribed))
}

func (b *Bot) handleSubscribe(ctx context.Context, msg *Message, chatID string) {
	username, firstName := "", ""
	if msg.From != nil {
		username = msg.From.Username
		firstName = msg.From.FirstName
	}
	added, err := b.store.AddSubscriber(ctx, chatID, username, firstName)
	if err != nil {
		log.Printf("AddSubscriber failed for %s: %v", chatID, err)
		b.reply(ctx, chatID, "Не удалось оформить подписку, попробуйте позже.")
		return
	}
	if added {
		b.reply(ctx, chatID, "✅ Вы подписаны на оповещения о свободных квартирах.")
	} else {
		b.reply(ctx, chatID, "Вы уже подписаны.")
	}
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID string) {
	removed, err := b.store.RemoveSubscriber(ctx, chatID)
	if err != nil {
		log.Printf("RemoveSubscriber failed for %s: %v", chatID, err)
		b.reply(ctx, chatID, "Не удалось отписаться, попробуйте позже.")
		return
	}
	if removed {
		b.reply(ctx, chatID, "Вы отписаны от оповещений.")
	} else {
		b.reply(ctx, chatID, "Вы не были подписаны.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID string) {
	stats, err := b.checker.Stats(ctx)
	if err != nil {
		log.Printf("Stats failed: %v", err)
		b.reply(ctx, chatID, "Не удалось получить статус.")
		return
	}
	b.reply(ctx, chatID, FormatStatus(stats, b.alerts.HasPending()))
}

// handleCheck runs the scans in a goroutine so a slow page load does not
// stall the poll loop.
func (b *Bot) handleCheck(ctx context.Context, chatID string) {
	profiles := b.cfg.EnabledProfiles()
	if len(profiles) == 0 {
		b.reply(ctx, chatID, "Нет активных фильтров.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("🔍 Запускаю проверку (%d фильтр(ов))...", len(profiles)))

	go func() {
		for _, profile := range profiles {
			result, err := b.checker.CheckProfile(ctx, profile)
			if err != nil {
				b.reply(ctx, chatID, FormatScanError(profile.Name, err.Error()))
				continue
			}
			b.reply(ctx, chatID, FormatCheckResult(result))
		}
	}()
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if err := b.client.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("Failed to reply to %s: %v", chatID, err)
	}
}
