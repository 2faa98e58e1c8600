package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
	"kvartaly_monitor/notifier"
)

type sentMessage struct {
	chatID string
	text   string
}

// fakeSender records every send and can simulate a blocked recipient.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	blocked map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{blocked: make(map[string]bool)}
}

func (s *fakeSender) SendMessage(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked[chatID] {
		return fmt.Errorf("sendMessage: forbidden: %w", notifier.ErrRecipientBlocked)
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (s *fakeSender) messagesTo(chatID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (s *fakeSender) countContaining(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if strings.Contains(m.text, substr) {
			n++
		}
	}
	return n
}

// memStore covers only what the manager touches: subscribers.
type memStore struct {
	mu   sync.Mutex
	subs map[string]bool
}

func newMemStore(chatIDs ...string) *memStore {
	m := &memStore{subs: make(map[string]bool)}
	for _, id := range chatIDs {
		m.subs[id] = true
	}
	return m
}

func (m *memStore) GetSubscribers(_ context.Context) ([]models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Subscriber
	for id := range m.subs {
		out = append(out, models.Subscriber{ChatID: id, IsActive: true})
	}
	return out, nil
}

func (m *memStore) RemoveSubscriber(_ context.Context, chatID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.subs[chatID] {
		return false, nil
	}
	delete(m.subs, chatID)
	return true, nil
}

func (m *memStore) isSubscriber(chatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[chatID]
}

func (m *memStore) GetApartmentsByProfile(_ context.Context, _ string) (map[string]*models.Apartment, error) {
	return nil, nil
}
func (m *memStore) UpsertApartment(_ context.Context, _ string, _ *models.ScrapedApartment) error {
	return nil
}
func (m *memStore) GetProfileState(_ context.Context, _ string) (*models.ProfileState, error) {
	return nil, nil
}
func (m *memStore) SaveProfileState(_ context.Context, _ *models.ProfileState) error { return nil }
func (m *memStore) AddScanRecord(_ context.Context, _ *models.ScanRecord) error      { return nil }
func (m *memStore) GetRecentScans(_ context.Context, _ int) ([]models.ScanRecord, error) {
	return nil, nil
}
func (m *memStore) PruneHistory(_ context.Context, _ time.Time) (int64, error) { return 0, nil }
func (m *memStore) AddSubscriber(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}
func (m *memStore) IsSubscriber(_ context.Context, _ string) (bool, error)  { return false, nil }
func (m *memStore) GetSubscriberCount(_ context.Context) (int, error)       { return 0, nil }
func (m *memStore) RecordBotUsage(_ context.Context, _, _ string) error     { return nil }
func (m *memStore) Close() error                                            { return nil }

func testProfile(name string) *config.SearchProfile {
	return &config.SearchProfile{
		ID:   "p1",
		Name: name,
		URL:  "https://example.test/flats",
	}
}

func testResult() *models.ScanResult {
	return &models.ScanResult{
		ProfileID:   "p1",
		ProfileName: "Test",
		Total:       10,
		Booked:      9,
		Available:   []models.ScanItem{{Text: "забронировать", Index: 0}},
		ScannedAt:   time.Now(),
	}
}

func fastOptions(maxReminders int) Options {
	return Options{
		WaitWindow:       40 * time.Millisecond,
		ReminderInterval: 25 * time.Millisecond,
		MaxReminders:     maxReminders,
	}
}

func TestRaiseBroadcastsToOperatorsAndSubscribers(t *testing.T) {
	sender := newFakeSender()
	store := newMemStore("100", "200")
	m := NewManager(store, sender, []string{"1", "100"}, Options{WaitWindow: time.Hour})
	defer m.Stop()

	m.Raise(context.Background(), testProfile("Квартал"), testResult())

	// Chat 100 is both operator and subscriber; it gets exactly one copy.
	for _, chatID := range []string{"1", "100", "200"} {
		if got := len(sender.messagesTo(chatID)); got != 1 {
			t.Errorf("chat %s received %d message(s), want 1", chatID, got)
		}
	}
	if !m.HasPending() {
		t.Error("expected a pending alert after Raise")
	}
}

func TestReminderCadenceAndCap(t *testing.T) {
	sender := newFakeSender()
	store := newMemStore()
	m := NewManager(store, sender, []string{"1"}, fastOptions(3))
	defer m.Stop()

	m.Raise(context.Background(), testProfile("Квартал"), testResult())

	deadline := time.After(2 * time.Second)
	for m.HasPending() {
		select {
		case <-deadline:
			t.Fatal("alert never exhausted its reminders")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Let the final broadcast finish.
	time.Sleep(50 * time.Millisecond)

	if got := sender.countContaining("Напоминание"); got != 3 {
		t.Errorf("reminders sent = %d, want 3", got)
	}
}

func TestAcknowledgeStopsReminders(t *testing.T) {
	sender := newFakeSender()
	store := newMemStore()
	m := NewManager(store, sender, []string{"1"}, fastOptions(5))
	defer m.Stop()

	ctx := context.Background()
	m.Raise(ctx, testProfile("Квартал"), testResult())

	if !m.Acknowledge(ctx, "1", "Анна") {
		t.Fatal("Acknowledge returned false with a pending alert")
	}
	if m.HasPending() {
		t.Error("alert still pending after acknowledgment")
	}

	// Wait past several reminder intervals; none may fire.
	time.Sleep(200 * time.Millisecond)
	if got := sender.countContaining("Напоминание"); got != 0 {
		t.Errorf("reminders after ack = %d, want 0", got)
	}

	// The responder got a confirmation.
	confirmed := false
	for _, text := range sender.messagesTo("1") {
		if strings.Contains(text, "Напоминания остановлены") {
			confirmed = true
		}
	}
	if !confirmed {
		t.Error("no confirmation sent to the acknowledging chat")
	}
}

func TestAcknowledgeWithoutPending(t *testing.T) {
	m := NewManager(newMemStore(), newFakeSender(), nil, Options{})
	if m.Acknowledge(context.Background(), "1", "") {
		t.Error("Acknowledge returned true with nothing pending")
	}
}

func TestNewAlertSupersedesPending(t *testing.T) {
	sender := newFakeSender()
	store := newMemStore()
	m := NewManager(store, sender, []string{"1"}, fastOptions(2))
	defer m.Stop()

	ctx := context.Background()
	m.Raise(ctx, testProfile("Старый квартал"), testResult())
	m.Raise(ctx, testProfile("Новый квартал"), testResult())

	deadline := time.After(2 * time.Second)
	for m.HasPending() {
		select {
		case <-deadline:
			t.Fatal("alert never exhausted its reminders")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)

	// Only the superseding alert may remind.
	for _, text := range sender.messagesTo("1") {
		if strings.Contains(text, "Напоминание") && strings.Contains(text, "Старый квартал") {
			t.Errorf("stale reminder fired for superseded alert: %q", text)
		}
	}
	if got := sender.countContaining("Новый квартал"); got < 3 {
		t.Errorf("messages about the live alert = %d, want initial + 2 reminders", got)
	}
}

func TestBlockedSubscriberIsRemoved(t *testing.T) {
	sender := newFakeSender()
	sender.blocked["200"] = true
	store := newMemStore("100", "200")
	m := NewManager(store, sender, nil, Options{WaitWindow: time.Hour})
	defer m.Stop()

	m.Broadcast(context.Background(), "test")

	if store.isSubscriber("200") {
		t.Error("blocked chat 200 still subscribed")
	}
	if !store.isSubscriber("100") {
		t.Error("healthy chat 100 was removed")
	}
	if got := len(sender.messagesTo("100")); got != 1 {
		t.Errorf("chat 100 received %d message(s), want 1", got)
	}
}
