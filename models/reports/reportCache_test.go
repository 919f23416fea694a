package reports

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/models"
)

func TestCacheDateKey(t *testing.T) {
	var d models.MyDateString
	if err := d.ParseString("2026-03-01"); err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	got := cacheDateKey(d)
	if got != "2026-03-01T00:00:00" {
		t.Fatalf("cacheDateKey = %q", got)
	}
	if strings.ContainsAny(got, "{} ") {
		t.Fatalf("cache key fragment contains struct formatting: %q", got)
	}
}
