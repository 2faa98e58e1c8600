package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"kvartaly_monitor/models"
)

// The site renders one booking control per apartment card. Labels are the
// only signal: the affirmative action text means the unit can be booked,
// the reservation vocabulary means it cannot.
const availableLabel = "забронировать"

var bookedWords = []string{"забронир", "бронь", "продан", "недоступ"}

// Words that mark a label as reservation-related at all. Anything else on
// the page (filters, pagination, card links) is not a booking control.
var reservationRoots = []string{"брон", "продан", "недоступ"}

// PageControls is the classified enumeration of booking controls on a page.
type PageControls struct {
	Items        []models.ScanItem
	Unclassified []string
}

func (p *PageControls) Counts() (total, booked, available int) {
	for _, item := range p.Items {
		if item.IsBooked {
			booked++
		} else {
			available++
		}
	}
	return len(p.Items), booked, available
}

// ParseBookingControls extracts booking-control elements from page HTML and
// classifies each label. Labels matching neither vocabulary are excluded
// from both counts and surfaced separately for diagnostics.
func ParseBookingControls(r io.Reader) (*PageControls, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	controls := &PageControls{}
	index := 0

	doc.Find("button, a, div, span").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}

		label := normalizeLabel(sel.Text())
		if label == "" || !isReservationRelated(label) {
			return
		}

		switch ClassifyLabel(label) {
		case LabelAvailable:
			controls.Items = append(controls.Items, models.ScanItem{
				Text:     label,
				IsBooked: false,
				Index:    index,
			})
			index++
		case LabelBooked:
			controls.Items = append(controls.Items, models.ScanItem{
				Text:     label,
				IsBooked: true,
				Index:    index,
			})
			index++
		default:
			controls.Unclassified = append(controls.Unclassified, label)
		}
	})

	return controls, nil
}

type Label int

const (
	LabelUnclassified Label = iota
	LabelAvailable
	LabelBooked
)

// ClassifyLabel decides what a booking-control label means. The exact
// affirmative text wins before the vocabulary check because the booked
// vocabulary roots ("забронир") are prefixes of the affirmative too.
func ClassifyLabel(label string) Label {
	label = normalizeLabel(label)

	if label == availableLabel {
		return LabelAvailable
	}
	for _, word := range bookedWords {
		if strings.Contains(label, word) {
			return LabelBooked
		}
	}
	return LabelUnclassified
}

func isReservationRelated(label string) bool {
	for _, root := range reservationRoots {
		if strings.Contains(label, root) {
			return true
		}
	}
	return false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
