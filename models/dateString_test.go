package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
)

func TestMyDateStringParseString(t *testing.T) {
	var d models.MyDateString
	if err := d.ParseString("2026-05-10T14:30:00"); err != nil {
		t.Fatalf("ParseString datetime: %v", err)
	}
	want := time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)
	if !time.Time(d).Equal(want) {
		t.Fatalf("parsed %v, want %v", time.Time(d), want)
	}

	if err := d.ParseString("2026-05-10"); err != nil {
		t.Fatalf("ParseString date only: %v", err)
	}
	want = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	if !time.Time(d).Equal(want) {
		t.Fatalf("parsed %v, want %v", time.Time(d), want)
	}

	if err := d.ParseString("10/05/2026"); err == nil {
		t.Fatalf("slash format did not fail")
	}
}

func TestMyDateStringJSONRoundTrip(t *testing.T) {
	var d models.MyDateString
	if err := json.Unmarshal([]byte(`"2026-05-10"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2026-05-10T00:00:00"` {
		t.Fatalf("marshalled %s", out)
	}

	if err := json.Unmarshal([]byte(`12345`), &d); err == nil {
		t.Fatalf("numeric input did not fail")
	}
}

func TestMyDateStringDayBoundsInTimezone(t *testing.T) {
	var d models.MyDateString
	if err := d.ParseString("2026-05-10"); err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if err := d.StartOfDayUTCTime("Asia/Yangon"); err != nil {
		t.Fatalf("StartOfDayUTCTime: %v", err)
	}
	// midnight in Yangon (UTC+6:30) is 17:30 UTC the previous day
	want := time.Date(2026, 5, 9, 17, 30, 0, 0, time.UTC)
	if !time.Time(d).Equal(want) {
		t.Fatalf("start of day %v, want %v", time.Time(d), want)
	}

	var e models.MyDateString
	if err := e.ParseString("2026-05-10"); err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if err := e.EndOfDayUTCTime(""); err != nil {
		t.Fatalf("EndOfDayUTCTime: %v", err)
	}
	got := time.Time(e)
	if got.Year() != 2026 || got.Month() != 5 || got.Day() != 10 || got.Hour() != 23 || got.Minute() != 59 {
		t.Fatalf("end of day with default timezone: %v", got)
	}

	bad := models.MyDateString(time.Now())
	if err := bad.StartOfDayUTCTime("Not/AZone"); err == nil {
		t.Fatalf("invalid timezone did not fail")
	}
}
