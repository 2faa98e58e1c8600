package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"kvartaly_monitor/alert"
	"kvartaly_monitor/config"
	"kvartaly_monitor/detector"
	"kvartaly_monitor/models"
	"kvartaly_monitor/notifier"
	"kvartaly_monitor/scraper"
	"kvartaly_monitor/storage"
)

// Monitor wires scanner, detector and alert manager into the scan pipeline.
// One Monitor instance runs for the lifetime of the process.
type Monitor struct {
	cfg      *config.Config
	scanner  scraper.Scanner
	detector *detector.Detector
	alerts   *alert.Manager
	store    storage.Store
	sender   alert.Sender

	// Operator chats get scan errors and heartbeats; subscribers do not.
	operatorChats []string

	mu          sync.Mutex
	running     bool
	totalScans  int
	failedScans int
}

func New(cfg *config.Config, scanner scraper.Scanner, det *detector.Detector, alerts *alert.Manager, store storage.Store, sender alert.Sender) *Monitor {
	return &Monitor{
		cfg:           cfg,
		scanner:       scanner,
		detector:      det,
		alerts:        alerts,
		store:         store,
		sender:        sender,
		operatorChats: config.ParseChatIDs(cfg.Telegram.AdminChatID),
	}
}

// RunJob scans every enabled profile once. If the previous run is still in
// progress the whole cycle is skipped; a slow page load must never stack
// browser sessions.
func (m *Monitor) RunJob(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		log.Println("Previous scan cycle still running, skipping")
		return
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	for _, profile := range m.cfg.EnabledProfiles() {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.CheckProfile(ctx, profile); err != nil {
			// Already logged and reported; move on to the next profile.
			continue
		}
	}
}

// CheckProfile runs the full pipeline for one profile: scan, record history,
// diff against the baseline and raise whatever qualifies. Also the engine
// behind the /check command.
func (m *Monitor) CheckProfile(ctx context.Context, profile *config.SearchProfile) (*models.ScanResult, error) {
	result, err := m.scanner.Scan(ctx, profile)

	m.mu.Lock()
	m.totalScans++
	if err != nil {
		m.failedScans++
	}
	m.mu.Unlock()

	if err != nil {
		log.Printf("[%s] Scan failed: %v", profile.ID, err)
		m.recordFailure(ctx, profile, err)
		m.notifyOperators(ctx, notifier.FormatScanError(profile.Name, err.Error()))
		return nil, err
	}

	if recErr := m.store.AddScanRecord(ctx, &models.ScanRecord{
		ProfileID:    result.ProfileID,
		ProfileName:  result.ProfileName,
		Total:        result.Total,
		Booked:       result.Booked,
		Available:    result.AvailableCount(),
		Unclassified: result.Unclassified,
		DurationMS:   result.Duration.Milliseconds(),
		ScannedAt:    result.ScannedAt,
	}); recErr != nil {
		log.Printf("[%s] Failed to record scan history: %v", profile.ID, recErr)
	}

	changes, err := m.detector.Detect(ctx, profile, result)
	if err != nil {
		log.Printf("[%s] Change detection failed: %v", profile.ID, err)
		return result, nil
	}

	m.dispatch(ctx, profile, result, changes)
	return result, nil
}

// dispatch routes changes to their notification paths. Availability changes
// go through the escalating alert; price changes are one-shot broadcasts.
func (m *Monitor) dispatch(ctx context.Context, profile *config.SearchProfile, result *models.ScanResult, changes []models.ApartmentChange) {
	raised := false
	for i := range changes {
		change := &changes[i]
		switch change.Type {
		case models.ChangeNew, models.ChangeAvailable:
			if raised {
				continue // one escalation per scan is enough
			}
			m.alerts.Raise(ctx, profile, result)
			raised = true
		case models.ChangePriceChange:
			m.alerts.Broadcast(ctx, notifier.FormatPriceChange(profile.Name, profile.URL, change))
		}
	}
}

func (m *Monitor) recordFailure(ctx context.Context, profile *config.SearchProfile, scanErr error) {
	if err := m.store.AddScanRecord(ctx, &models.ScanRecord{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Error:       scanErr.Error(),
		ScannedAt:   time.Now(),
	}); err != nil {
		log.Printf("[%s] Failed to record scan failure: %v", profile.ID, err)
	}
}

// Heartbeat reports liveness to the operator chats. Scheduled independently
// of the scan cycle so a wedged scanner is visible by its silence.
func (m *Monitor) Heartbeat(ctx context.Context) {
	stats, err := m.Stats(ctx)
	if err != nil {
		log.Printf("Heartbeat stats failed: %v", err)
		return
	}
	m.notifyOperators(ctx, notifier.FormatHeartbeat(stats))
}

// Stats assembles the aggregate snapshot used by /status and the heartbeat.
func (m *Monitor) Stats(ctx context.Context) (*models.MonitorStats, error) {
	m.mu.Lock()
	stats := &models.MonitorStats{
		TotalScans:  m.totalScans,
		FailedScans: m.failedScans,
	}
	m.mu.Unlock()

	stats.ActiveProfiles = len(m.cfg.EnabledProfiles())

	count, err := m.store.GetSubscriberCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.Subscribers = count

	recent, err := m.store.GetRecentScans(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 && recent[0].Error == "" {
		last := recent[0]
		t := last.ScannedAt
		stats.LastScanAt = &t
		stats.LastTotal = last.Total
		stats.LastBooked = last.Booked
		stats.LastAvailable = last.Available
	}
	return stats, nil
}

func (m *Monitor) notifyOperators(ctx context.Context, text string) {
	for _, chatID := range m.operatorChats {
		if err := m.sender.SendMessage(ctx, chatID, text); err != nil {
			log.Printf("Failed to notify operator %s: %v", chatID, err)
		}
	}
}
