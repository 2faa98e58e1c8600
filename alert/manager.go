package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
	"kvartaly_monitor/notifier"
	"kvartaly_monitor/storage"
)

// Sender is the one outbound capability the manager needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

const (
	defaultWaitWindow       = 5 * time.Minute
	defaultReminderInterval = 1 * time.Minute
	defaultMaxReminders     = 5
	sendTimeout             = 30 * time.Second
)

// Options tune the escalation cadence. Zero values fall back to defaults;
// tests shrink the durations.
type Options struct {
	WaitWindow       time.Duration
	ReminderInterval time.Duration
	MaxReminders     int
}

// Manager escalates availability alerts until a subscriber replies.
//
// There is a single pending slot: a new qualifying alert supersedes the
// previous one, cancelling its timers. Every timer firing re-checks that the
// alert it was armed for is still the live one, so a superseded or
// acknowledged alert can never emit a late reminder.
type Manager struct {
	mu     sync.Mutex
	store  storage.Store
	sender Sender
	opts   Options

	// Operator chats from config, always notified in addition to the
	// subscriber table.
	operatorChats []string

	pending *pendingAlert
}

type pendingAlert struct {
	models.PendingAlert
	url   string
	timer *time.Timer
}

func NewManager(store storage.Store, sender Sender, operatorChats []string, opts Options) *Manager {
	if opts.WaitWindow <= 0 {
		opts.WaitWindow = defaultWaitWindow
	}
	if opts.ReminderInterval <= 0 {
		opts.ReminderInterval = defaultReminderInterval
	}
	if opts.MaxReminders <= 0 {
		opts.MaxReminders = defaultMaxReminders
	}
	return &Manager{
		store:         store,
		sender:        sender,
		opts:          opts,
		operatorChats: operatorChats,
	}
}

// Raise sends the initial alert to every recipient and arms the wait window.
// Any alert already pending is superseded.
func (m *Manager) Raise(ctx context.Context, profile *config.SearchProfile, result *models.ScanResult) {
	m.mu.Lock()
	if m.pending != nil {
		log.Printf("Alert for %q superseded by new alert for %q", m.pending.ProfileName, profile.Name)
		m.pending.timer.Stop()
	}

	p := &pendingAlert{
		PendingAlert: models.PendingAlert{
			ID:          uuid.NewString(),
			ProfileName: profile.Name,
			Result:      result,
			SentAt:      time.Now(),
		},
		url: profile.URL,
	}
	id := p.ID
	p.timer = time.AfterFunc(m.opts.WaitWindow, func() { m.fireReminder(id) })
	m.pending = p
	m.mu.Unlock()

	log.Printf("Alert raised for %q: %d available (id %s)", profile.Name, result.AvailableCount(), id)
	m.broadcast(ctx, notifier.FormatAvailableAlert(profile.Name, profile.URL, result))
}

// fireReminder runs on the timer goroutine. The id check is the liveness
// guard: a stale timer for a superseded or acknowledged alert is a no-op.
// The next timer is armed only after the broadcast finishes, so reminder N+1
// can never overtake reminder N.
func (m *Manager) fireReminder(id string) {
	m.mu.Lock()
	p := m.pending
	if p == nil || p.ID != id {
		m.mu.Unlock()
		return
	}

	p.RemindersSent++
	n := p.RemindersSent
	text := notifier.FormatReminder(n, m.opts.MaxReminders, p.ProfileName, p.url, p.Result.AvailableCount())

	exhausted := n >= m.opts.MaxReminders
	if exhausted {
		log.Printf("Alert for %q exhausted %d reminders without acknowledgment", p.ProfileName, n)
		m.pending = nil
	}
	m.mu.Unlock()

	log.Printf("Sending reminder %d/%d for %q", n, m.opts.MaxReminders, p.ProfileName)
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	m.broadcast(ctx, text)

	if exhausted {
		return
	}

	m.mu.Lock()
	if m.pending != nil && m.pending.ID == id {
		m.pending.timer = time.AfterFunc(m.opts.ReminderInterval, func() { m.fireReminder(id) })
	}
	m.mu.Unlock()
}

// Acknowledge clears the pending alert if there is one. Returns true when a
// reply actually acknowledged something; the caller decides what to tell the
// responder.
func (m *Manager) Acknowledge(ctx context.Context, chatID, firstName string) bool {
	m.mu.Lock()
	p := m.pending
	if p == nil {
		m.mu.Unlock()
		return false
	}
	p.timer.Stop()
	p.Acknowledged = true
	m.pending = nil
	m.mu.Unlock()

	log.Printf("Alert for %q acknowledged by chat %s after %d reminder(s)",
		p.ProfileName, chatID, p.RemindersSent)

	if err := m.sender.SendMessage(ctx, chatID, notifier.FormatAcknowledged(firstName)); err != nil {
		log.Printf("Failed to confirm acknowledgment to %s: %v", chatID, err)
	}
	return true
}

// HasPending reports whether an unacknowledged alert is in flight.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Stop cancels any armed timer. Used on shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.timer.Stop()
		m.pending = nil
	}
}

// Broadcast sends one message to every recipient: configured operator chats
// plus the subscriber table, deduplicated. A failure for one recipient never
// blocks the others; a blocked recipient is unsubscribed.
func (m *Manager) Broadcast(ctx context.Context, text string) {
	m.broadcast(ctx, text)
}

func (m *Manager) broadcast(ctx context.Context, text string) {
	recipients := make([]string, 0, len(m.operatorChats))
	seen := make(map[string]bool)
	for _, id := range m.operatorChats {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}

	subs, err := m.store.GetSubscribers(ctx)
	if err != nil {
		log.Printf("Failed to load subscribers, notifying operator chats only: %v", err)
	}
	for _, sub := range subs {
		if !seen[sub.ChatID] {
			seen[sub.ChatID] = true
			recipients = append(recipients, sub.ChatID)
		}
	}

	for _, chatID := range recipients {
		if err := m.sender.SendMessage(ctx, chatID, text); err != nil {
			if notifier.IsRecipientBlocked(err) {
				log.Printf("Chat %s blocked the bot, unsubscribing", chatID)
				if _, rmErr := m.store.RemoveSubscriber(ctx, chatID); rmErr != nil {
					log.Printf("Failed to unsubscribe %s: %v", chatID, rmErr)
				}
				continue
			}
			log.Printf("Failed to send to %s: %v", chatID, err)
		}
	}
}
