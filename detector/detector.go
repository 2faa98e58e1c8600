package detector

import (
	"context"
	"fmt"
	"log"

	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
	"kvartaly_monitor/storage"
)

// Detector turns a scan snapshot into semantic changes against the
// persisted per-profile state.
//
// The page exposes no stable apartment identity, so the primary signal is
// the aggregate transition: a profile whose available count moves from zero
// to non-zero fires exactly one qualifying change. Per-item records with
// synthetic position-based IDs are kept write-through as diagnostics.
type Detector struct {
	store storage.Store
}

func New(store storage.Store) *Detector {
	return &Detector{store: store}
}

// Detect diffs the scan result against stored state, upserts every observed
// item and advances the aggregate baseline. The returned changes are gated
// by the profile's notification policy.
//
// Callers must not invoke Detect for failed scans; a scan error means no
// state mutation at all.
func (d *Detector) Detect(ctx context.Context, profile *config.SearchProfile, result *models.ScanResult) ([]models.ApartmentChange, error) {
	if result == nil {
		return nil, fmt.Errorf("nil scan result for profile %s", profile.ID)
	}

	prior, err := d.store.GetProfileState(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get profile state: %w", err)
	}

	tracked, err := d.store.GetApartmentsByProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("get tracked apartments: %w", err)
	}

	var changes []models.ApartmentChange

	// Primary trigger: availability appeared where there was none. A missing
	// baseline row counts as zero, so the first ever sighting alerts too.
	priorAvailable := 0
	if prior != nil {
		priorAvailable = prior.LastAvailable
	}
	current := result.AvailableCount()

	switch {
	case priorAvailable == 0 && current > 0:
		change := models.ApartmentChange{
			Apartment: scrapedFromItem(result.Available[0]),
		}
		if prior == nil {
			change.Type = models.ChangeNew
		} else {
			change.Type = models.ChangeAvailable
			change.PreviousStatus = models.StatusBooked
		}
		if (change.Type == models.ChangeNew && profile.NotifyOnNew) ||
			(change.Type == models.ChangeAvailable && profile.NotifyOnAvailable) {
			changes = append(changes, change)
		}
		log.Printf("[%s] Availability appeared: %d apartment(s) free (was 0)", profile.ID, current)

	case priorAvailable > 0 && current == 0:
		// Availability went away. Logged, never alerted.
		log.Printf("[%s] All apartments booked again (was %d available)", profile.ID, priorAvailable)
	}

	// Write-through: every observed item is upserted regardless of whether
	// anything fired. One bad row must not abort the rest.
	for _, scraped := range observedApartments(result) {
		if profile.NotifyOnPriceChange {
			if existing, ok := tracked[scraped.ExternalID]; ok {
				if existing.Price != nil && scraped.Price != nil && *existing.Price != *scraped.Price {
					changes = append(changes, models.ApartmentChange{
						Type:          models.ChangePriceChange,
						Apartment:     scraped,
						PreviousPrice: existing.Price,
					})
					log.Printf("[%s] Price changed for %s: %.0f -> %.0f",
						profile.ID, scraped.ExternalID, *existing.Price, *scraped.Price)
				}
			}
		}

		if err := d.store.UpsertApartment(ctx, profile.ID, &scraped); err != nil {
			log.Printf("[%s] Failed to upsert %s: %v", profile.ID, scraped.ExternalID, err)
		}
	}

	state := &models.ProfileState{
		ProfileID:     profile.ID,
		LastTotal:     result.Total,
		LastBooked:    result.Booked,
		LastAvailable: current,
	}
	if err := d.store.SaveProfileState(ctx, state); err != nil {
		return changes, fmt.Errorf("save profile state: %w", err)
	}

	return changes, nil
}

// observedApartments returns the per-item records to persist: the reader's
// detailed records when it produced any, otherwise synthesized ones.
func observedApartments(result *models.ScanResult) []models.ScrapedApartment {
	if len(result.Apartments) > 0 {
		return result.Apartments
	}
	apartments := make([]models.ScrapedApartment, 0, len(result.Available))
	for _, item := range result.Available {
		apartments = append(apartments, scrapedFromItem(item))
	}
	return apartments
}

// scrapedFromItem builds the best-effort per-item record. The position index
// is the only identity the page offers; it can shift between scans, which is
// why it never drives alerting.
func scrapedFromItem(item models.ScanItem) models.ScrapedApartment {
	return models.ScrapedApartment{
		ExternalID: fmt.Sprintf("available-%d", item.Index),
		Status:     models.StatusAvailable,
	}
}
