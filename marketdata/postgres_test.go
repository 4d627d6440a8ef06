package marketdata

import (
	"os"
	"testing"
	"time"
)

// Requires a live database; set AMCLIB_PG_DSN to run, e.g.
// AMCLIB_PG_DSN="postgres://localhost/amclib_test?sslmode=disable".
func TestPGFixingFeed(t *testing.T) {
	dsn := os.Getenv("AMCLIB_PG_DSN")
	if dsn == "" {
		t.Skip("AMCLIB_PG_DSN not set")
	}

	feed, err := OpenPGFixingFeed(dsn, "")
	if err != nil {
		t.Fatalf("OpenPGFixingFeed: %v", err)
	}
	defer feed.Close()

	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if _, err := feed.db.Exec(
		`INSERT INTO index_fixings (index_name, fixing_date, value) VALUES ($1, $2, $3)
		 ON CONFLICT (index_name, fixing_date) DO UPDATE SET value = EXCLUDED.value`,
		"EUR-EURIBOR-6M", date.Format(dateLayout), 0.0275,
	); err != nil {
		t.Fatalf("seeding fixing: %v", err)
	}

	v, ok := feed.Fixing("EUR-EURIBOR-6M", date)
	if !ok || v != 0.0275 {
		t.Fatalf("Fixing = (%v, %v), want (0.0275, true)", v, ok)
	}
	if _, ok := feed.Fixing("EUR-EURIBOR-6M", date.AddDate(0, 0, 1)); ok {
		t.Fatalf("expected missing fixing for unseeded date")
	}

	// Second lookup hits the cache.
	v, ok = feed.Fixing("EUR-EURIBOR-6M", date)
	if !ok || v != 0.0275 {
		t.Fatalf("cached Fixing = (%v, %v), want (0.0275, true)", v, ok)
	}
}
