package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
)

const scanTimeout = 90 * time.Second

// BrowserHandler drives a single Chromium instance against the listing site.
// The browser is a process-wide singleton; Scan is serialized by the mutex.
type BrowserHandler struct {
	cfg         *config.Config
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	mu          sync.Mutex
	initialized bool
}

func NewBrowserHandler(cfg *config.Config) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) ensureBrowser() error {
	if h.initialized && h.browser.IsConnected() {
		return nil
	}

	if h.initialized {
		log.Println("Browser disconnected, reinitializing...")
		h.teardown()
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.cfg.Browser.Headless),
		SlowMo:   playwright.Float(float64(h.cfg.Browser.SlowMo)),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-gpu",
			"--disable-extensions",
		},
	}
	if h.cfg.Proxy.Enabled && h.cfg.Proxy.URL != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server:   h.cfg.Proxy.URL,
			Username: playwright.String(h.cfg.Proxy.Username),
			Password: playwright.String(h.cfg.Proxy.Password),
		}
	}

	h.browser, err = h.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(randomUserAgent()),
		Viewport:   &playwright.Size{Width: 1920, Height: 1080},
		Locale:     playwright.String("ru-RU"),
		TimezoneId: playwright.String("Europe/Moscow"),
	}
	if _, err := os.Stat(h.cfg.Browser.StateFile); err == nil {
		ctxOpts.StorageStatePath = playwright.String(h.cfg.Browser.StateFile)
		log.Println("Loaded browser state from file")
	}

	h.context, err = h.browser.NewContext(ctxOpts)
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}

	h.initialized = true
	log.Println("Browser initialized")
	return nil
}

// Scan loads the profile URL, walks the page into a fully-expanded listing
// view and classifies every booking control. Any failure along the way is a
// scan-level error: state must not be interpreted as "no availability".
func (h *BrowserHandler) Scan(ctx context.Context, profile *config.SearchProfile) (*models.ScanResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	started := time.Now()

	if err := h.ensureBrowser(); err != nil {
		return nil, &models.ScanError{ProfileID: profile.ID, Message: "browser init failed", Err: err}
	}

	page, err := h.context.NewPage()
	if err != nil {
		return nil, &models.ScanError{ProfileID: profile.ID, Message: "create page failed", Err: err}
	}
	defer page.Close()

	if err := page.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.Printf("Warning: could not install init script: %v", err)
	}

	log.Printf("[%s] Navigating to %s", profile.ID, profile.URL)
	_, err = page.Goto(profile.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(scanTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, &models.ScanError{ProfileID: profile.ID, Message: "navigation failed", Err: err}
	}

	humanDelay(3000, 5000)
	h.waitNetworkIdle(page, profile.ID, 30000)

	h.switchToTileView(page, profile.ID)
	h.clickShowApartments(page, profile.ID)
	h.closePopups(page)
	h.expandAllPages(page, profile.ID)

	for i := 0; i < 5; i++ {
		humanScroll(page)
	}
	humanDelay(2000, 3000)

	h.saveScreenshot(page, profile.ID)

	html, err := page.Content()
	if err != nil {
		return nil, &models.ScanError{ProfileID: profile.ID, Message: "read page content failed", Err: err}
	}

	controls, err := ParseBookingControls(strings.NewReader(html))
	if err != nil {
		return nil, &models.ScanError{ProfileID: profile.ID, Message: "parse booking controls failed", Err: err}
	}

	result := &models.ScanResult{
		ProfileID:    profile.ID,
		ProfileName:  profile.Name,
		Unclassified: len(controls.Unclassified),
		ScannedAt:    started,
		Duration:     time.Since(started),
	}
	for _, item := range controls.Items {
		if item.IsBooked {
			result.Booked++
		} else {
			result.Available = append(result.Available, item)
		}
	}
	result.Total = result.Booked + len(result.Available)

	if len(controls.Unclassified) > 0 {
		log.Printf("[%s] %d unclassified booking labels: %v",
			profile.ID, len(controls.Unclassified), controls.Unclassified)
	}
	log.Printf("[%s] Scan complete: total=%d booked=%d available=%d (%.1fs)",
		profile.ID, result.Total, result.Booked, result.AvailableCount(), result.Duration.Seconds())

	return result, nil
}

func (h *BrowserHandler) waitNetworkIdle(page playwright.Page, profileID string, timeoutMs float64) {
	err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(timeoutMs),
	})
	if err != nil {
		log.Printf("[%s] Network idle timeout, continuing anyway", profileID)
	}
}

func (h *BrowserHandler) switchToTileView(page playwright.Page, profileID string) {
	tile := page.Locator("text=Плитка").First()
	if visible, _ := tile.IsVisible(); visible {
		if err := tile.Click(); err == nil {
			log.Printf("[%s] Switched to tile view", profileID)
			humanDelay(1000, 2000)
		}
	}
}

func (h *BrowserHandler) clickShowApartments(page playwright.Page, profileID string) {
	btn := page.Locator(`text=/Показать \d+ квартир/`).First()
	if err := btn.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		log.Printf("[%s] No \"Показать квартир\" button found", profileID)
		return
	}

	if text, err := btn.TextContent(); err == nil {
		log.Printf("[%s] Clicking %q", profileID, strings.TrimSpace(text))
	}
	if err := btn.Click(); err != nil {
		log.Printf("[%s] Failed to click show button: %v", profileID, err)
		return
	}
	humanDelay(5000, 8000)
	h.waitNetworkIdle(page, profileID, 30000)
}

func (h *BrowserHandler) closePopups(page playwright.Page) {
	closeBtn := page.Locator(`[class*="close"], [class*="modal"] button, .popup-close`).First()
	if visible, _ := closeBtn.IsVisible(); visible {
		if err := closeBtn.Click(); err == nil {
			humanDelay(500, 1000)
		}
	}
}

// expandAllPages clicks the "Все" pagination control so every card is in the
// DOM before counting. Falls back to a JS click because the control is often
// a bare div.
func (h *BrowserHandler) expandAllPages(page playwright.Page, profileID string) {
	page.Evaluate(`window.scrollTo(0, 0)`)
	humanDelay(500, 1000)

	clicked, err := page.Evaluate(`() => {
		const byId = document.querySelector('[data-id="all"]');
		if (byId) { byId.click(); return true; }
		const leaves = Array.from(document.querySelectorAll('*')).filter(
			el => el.textContent.trim() === 'Все' && el.children.length === 0
		);
		if (leaves.length > 0) { leaves[leaves.length - 1].click(); return true; }
		return false;
	}`)
	if err != nil || clicked != true {
		log.Printf("[%s] Could not find \"Все\" pagination control", profileID)
		return
	}

	log.Printf("[%s] Expanded pagination to all pages", profileID)
	humanDelay(3000, 5000)
	h.waitNetworkIdle(page, profileID, 20000)
}

func (h *BrowserHandler) saveScreenshot(page playwright.Page, profileID string) {
	path := filepath.Join(h.cfg.DataDir, fmt.Sprintf("scan-%s-%s.png", profileID, time.Now().Format("20060102-150405")))
	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		log.Printf("[%s] Screenshot failed: %v", profileID, err)
		return
	}
	log.Printf("[%s] Screenshot saved: %s", profileID, path)
}

// SaveState persists cookies and local storage so restarts look like the
// same visitor.
func (h *BrowserHandler) SaveState() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(h.cfg.Browser.StateFile), 0755); err != nil {
		return
	}
	if _, err := h.context.StorageState(h.cfg.Browser.StateFile); err != nil {
		log.Printf("Warning: could not save browser state: %v", err)
	}
}

func (h *BrowserHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		if _, err := h.context.StorageState(h.cfg.Browser.StateFile); err == nil {
			log.Println("Browser state saved")
		}
	}
	h.teardown()
	log.Println("Browser closed")
	return nil
}

func (h *BrowserHandler) teardown() {
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}
