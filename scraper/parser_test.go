package scraper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifyLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Label
	}{
		{"Забронировать", LabelAvailable},
		{"  забронировать  ", LabelAvailable},
		{"Забронировано", LabelBooked},
		{"Забронирована", LabelBooked},
		{"Бронь", LabelBooked},
		{"Продано", LabelBooked},
		{"Недоступно", LabelBooked},
		{"Квартира продана", LabelBooked},
		{"Бронирование откроется позже", LabelUnclassified},
		{"", LabelUnclassified},
		{"Показать 25 квартир", LabelUnclassified},
	}

	for _, tt := range tests {
		if got := ClassifyLabel(tt.label); got != tt.want {
			t.Errorf("ClassifyLabel(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func loadFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture %s: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParseBookingControlsAllBooked(t *testing.T) {
	controls, err := ParseBookingControls(loadFixture(t, "listing_all_booked.html"))
	if err != nil {
		t.Fatalf("ParseBookingControls: %v", err)
	}

	total, booked, available := controls.Counts()
	if total != 3 || booked != 3 || available != 0 {
		t.Errorf("counts = (%d, %d, %d), want (3, 3, 0)", total, booked, available)
	}
	if len(controls.Unclassified) != 0 {
		t.Errorf("unexpected unclassified labels: %v", controls.Unclassified)
	}
}

func TestParseBookingControlsOneAvailable(t *testing.T) {
	controls, err := ParseBookingControls(loadFixture(t, "listing_one_available.html"))
	if err != nil {
		t.Fatalf("ParseBookingControls: %v", err)
	}

	total, booked, available := controls.Counts()
	if total != 3 || booked != 2 || available != 1 {
		t.Errorf("counts = (%d, %d, %d), want (3, 2, 1)", total, booked, available)
	}

	// The label that is reservation-related but matches neither vocabulary
	// must be surfaced, not silently counted either way.
	if len(controls.Unclassified) != 1 {
		t.Fatalf("unclassified = %v, want exactly one entry", controls.Unclassified)
	}
	if controls.Unclassified[0] != "бронирование откроется позже" {
		t.Errorf("unclassified[0] = %q", controls.Unclassified[0])
	}
}

func TestParseBookingControlsIgnoresNonLeafElements(t *testing.T) {
	// The wrapping div contains the button; only the leaf button counts.
	html := `<div class="card"><button>Забронировать</button></div>`
	controls, err := ParseBookingControls(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ParseBookingControls: %v", err)
	}

	total, _, available := controls.Counts()
	if total != 1 || available != 1 {
		t.Errorf("counts = (%d, available %d), want (1, 1)", total, available)
	}
}
