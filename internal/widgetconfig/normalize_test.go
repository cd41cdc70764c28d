package widgetconfig

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func validRaw() RawConfig {
	return RawConfig{
		OperatingDays: []string{"Monday", "tuesday", "FRIDAY"},
		StartTime:     "10:00",
		EndTime:       "22:00",
		Timezone:      "Europe/Berlin",
		TicketTypes: []TicketType{
			{ID: "adult", Name: "Adult", PricePerUnit: 30},
			{ID: "child", Name: "Child", PricePerUnit: 15},
		},
		MinPlayers: intPtr(2),
		MaxPlayers: intPtr(8),
	}
}

func fieldsOf(err error) map[string]bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make(map[string]bool)
	for _, f := range verr.Fields() {
		out[f] = true
	}
	return out
}

func TestNormalize(t *testing.T) {
	t.Run("appliesDefaults", func(t *testing.T) {
		cfg, err := Normalize(RawConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.TicketTypes) != 1 || cfg.TicketTypes[0].ID != DefaultTicketTypeID || cfg.TicketTypes[0].PricePerUnit != 0 {
			t.Errorf("default ticket types = %+v", cfg.TicketTypes)
		}
		if cfg.SlotIntervalMinutes != 60 {
			t.Errorf("SlotIntervalMinutes = %d, want 60", cfg.SlotIntervalMinutes)
		}
		if cfg.MinPlayers != 1 || cfg.MaxPlayers != 10 {
			t.Errorf("players = [%d,%d], want [1,10]", cfg.MinPlayers, cfg.MaxPlayers)
		}
		if cfg.Advance.MinLead != 0 || cfg.Advance.MaxLead != 365*24*time.Hour || !cfg.Advance.SameDayAllowed {
			t.Errorf("advance = %+v", cfg.Advance)
		}
		if cfg.Location != time.UTC {
			t.Errorf("Location = %v, want UTC", cfg.Location)
		}
		if len(cfg.OperatingDays) != 0 {
			t.Errorf("OperatingDays = %v, want empty", cfg.OperatingDays)
		}
	})

	t.Run("parsesFullConfig", func(t *testing.T) {
		raw := validRaw()
		raw.SlotIntervalMinutes = intPtr(90)
		raw.AdvanceBooking = &RawAdvanceWindow{MinLeadMinutes: intPtr(120), MaxLeadDays: intPtr(30), SameDayAllowed: boolPtr(false)}
		raw.CustomHours = map[string]RawDayHours{
			"2025-12-24": {Start: "10:00", End: "14:00"},
			"2025-12-25": {Closed: true},
		}
		raw.CustomDates = []RawCustomDate{{Date: "2025-12-28"}, {Date: "2025-12-27", StartTime: "12:00", EndTime: "18:00"}}
		raw.BlockedDates = []string{"2025-12-31"}

		cfg, err := Normalize(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.OperatingDays[time.Monday] || !cfg.OperatingDays[time.Tuesday] || !cfg.OperatingDays[time.Friday] || cfg.OperatingDays[time.Sunday] {
			t.Errorf("OperatingDays = %v", cfg.OperatingDays)
		}
		if cfg.Location.String() != "Europe/Berlin" {
			t.Errorf("Location = %s", cfg.Location)
		}
		if cfg.Advance.MinLead != 2*time.Hour || cfg.Advance.MaxLead != 30*24*time.Hour || cfg.Advance.SameDayAllowed {
			t.Errorf("advance = %+v", cfg.Advance)
		}
		if len(cfg.CustomDates) != 2 || cfg.CustomDates[0].Date != mustDate(t, "2025-12-27") {
			t.Fatalf("CustomDates not sorted: %+v", cfg.CustomDates)
		}
		if cfg.CustomDates[1].Window != (Window{Start: 600, End: 1320}) {
			t.Errorf("custom date without times should inherit global hours, got %+v", cfg.CustomDates[1].Window)
		}
		if !cfg.CustomHours[mustDate(t, "2025-12-25")].Closed {
			t.Error("2025-12-25 should be closed")
		}
		if !cfg.IsBlocked(mustDate(t, "2025-12-31")) {
			t.Error("2025-12-31 should be blocked")
		}
	})

	t.Run("maxPlayersDefaultFollowsLargeMinimum", func(t *testing.T) {
		cfg, err := Normalize(RawConfig{MinPlayers: intPtr(12)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxPlayers != 12 {
			t.Errorf("MaxPlayers = %d, want 12", cfg.MaxPlayers)
		}
	})
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawConfig)
		fields []string
	}{
		{"startNotBeforeEnd", func(r *RawConfig) { r.StartTime, r.EndTime = "18:00", "09:00" }, []string{"endTime"}},
		{"equalStartEnd", func(r *RawConfig) { r.StartTime, r.EndTime = "10:00", "10:00" }, []string{"endTime"}},
		{"malformedTime", func(r *RawConfig) { r.StartTime = "9am" }, []string{"startTime"}},
		{"unknownWeekday", func(r *RawConfig) { r.OperatingDays = []string{"Funday"} }, []string{"operatingDays[0]"}},
		{"unknownTimezone", func(r *RawConfig) { r.Timezone = "Mars/Olympus" }, []string{"timezone"}},
		{"zeroInterval", func(r *RawConfig) { r.SlotIntervalMinutes = intPtr(0) }, []string{"slotIntervalMinutes"}},
		{"minAboveMaxPlayers", func(r *RawConfig) { r.MinPlayers, r.MaxPlayers = intPtr(9), intPtr(4) }, []string{"minPlayers"}},
		{"advanceMinAboveMax", func(r *RawConfig) {
			r.AdvanceBooking = &RawAdvanceWindow{MinLeadMinutes: intPtr(3 * 24 * 60), MaxLeadDays: intPtr(1)}
		}, []string{"advanceBooking"}},
		{"duplicateTicketID", func(r *RawConfig) {
			r.TicketTypes = append(r.TicketTypes, TicketType{ID: "adult", Name: "Adult again", PricePerUnit: 1})
		}, []string{"ticketTypes[2].id"}},
		{"negativePrice", func(r *RawConfig) { r.TicketTypes[0].PricePerUnit = -5 }, []string{"ticketTypes[0].pricePerUnit"}},
		{"customHoursInverted", func(r *RawConfig) {
			r.CustomHours = map[string]RawDayHours{"2025-06-01": {Start: "20:00", End: "08:00"}}
		}, []string{"customHours[2025-06-01]"}},
		{"customHoursBadDate", func(r *RawConfig) {
			r.CustomHours = map[string]RawDayHours{"2025-13-01": {Closed: true}}
		}, []string{"customHours[2025-13-01]"}},
		{"customDateInverted", func(r *RawConfig) {
			r.CustomDates = []RawCustomDate{{Date: "2025-06-01", StartTime: "20:00", EndTime: "19:00"}}
		}, []string{"customDates[0]"}},
		{"duplicateCustomDate", func(r *RawConfig) {
			r.CustomDates = []RawCustomDate{{Date: "2025-06-01"}, {Date: "2025-06-01"}}
		}, []string{"customDates[1].date"}},
		{"blockedDateMalformed", func(r *RawConfig) { r.BlockedDates = []string{"06/01/2025"} }, []string{"blockedDates[0]"}},
		{"selectWithoutOptions", func(r *RawConfig) {
			r.AdditionalQuestions = []FormField{{ID: "shoe", Label: "Shoe size", Type: "select"}}
		}, []string{"additionalQuestions[0].options"}},
		{"duplicateQuestionID", func(r *RawConfig) {
			r.AdditionalQuestions = []FormField{
				{ID: "notes", Label: "Notes", Type: "text"},
				{ID: "notes", Label: "More notes", Type: "textarea"},
			}
		}, []string{"additionalQuestions[1].id"}},
		{"operatingDaysWithoutHours", func(r *RawConfig) { r.StartTime, r.EndTime = "", "" }, []string{"startTime"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			cfg, err := Normalize(raw)
			if err == nil {
				t.Fatalf("expected error, got config %+v", cfg)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not match ErrInvalidConfig", err)
			}
			got := fieldsOf(err)
			for _, f := range tt.fields {
				if !got[f] {
					t.Errorf("expected field %q in %v", f, got)
				}
			}
		})
	}
}

func TestNormalizeReportsEveryField(t *testing.T) {
	raw := validRaw()
	raw.StartTime, raw.EndTime = "20:00", "10:00"
	raw.MinPlayers, raw.MaxPlayers = intPtr(6), intPtr(3)
	raw.Timezone = "Nowhere/Land"
	raw.TicketTypes[1].PricePerUnit = -1

	_, err := Normalize(raw)
	got := fieldsOf(err)
	for _, f := range []string{"endTime", "minPlayers", "timezone", "ticketTypes[1].pricePerUnit"} {
		if !got[f] {
			t.Errorf("missing field %q in %v", f, got)
		}
	}
}

func TestNormalizeCustomHoursOrder(t *testing.T) {
	raw := validRaw()
	raw.CustomHours = map[string]RawDayHours{
		"2030-06-03": {Start: "20:00", End: "08:00"},
		"2030-14-01": {Closed: true},
		"2030-06-01": {Start: "20:00", End: "08:00"},
		"2030-13-01": {Closed: true},
		"2030-06-02": {Start: "20:00"},
	}
	want := []string{
		"customHours[2030-13-01]",
		"customHours[2030-14-01]",
		"customHours[2030-06-01]",
		"customHours[2030-06-02]",
		"customHours[2030-06-03]",
	}

	for i := 0; i < 20; i++ {
		_, err := Normalize(raw)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		got := []string{}
		for _, f := range verr.Fields() {
			if strings.HasPrefix(f, "customHours[") {
				got = append(got, f)
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: fields = %v, want %v", i, got, want)
		}
	}
}

func TestEffectiveWindow(t *testing.T) {
	raw := validRaw()
	raw.CustomHours = map[string]RawDayHours{
		"2025-06-02": {Start: "12:00", End: "16:00"}, // Monday
		"2025-06-06": {Closed: true},                 // Friday
	}
	raw.CustomDates = []RawCustomDate{
		{Date: "2025-06-02", StartTime: "08:00", EndTime: "09:00"},
		{Date: "2025-06-08", StartTime: "14:00", EndTime: "20:00"}, // Sunday
	}
	raw.BlockedDates = []string{"2025-06-02", "2025-06-03"}
	cfg, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	tests := []struct {
		date   string
		open   bool
		window Window
	}{
		{"2025-06-02", false, Window{}},                   // blocked beats customHours
		{"2025-06-03", false, Window{}},                   // blocked operating day
		{"2025-06-06", false, Window{}},                   // closed override
		{"2025-06-08", true, Window{Start: 840, End: 1200}}, // custom date on closed weekday
		{"2025-06-09", true, Window{Start: 600, End: 1320}}, // regular Monday
		{"2025-06-10", true, Window{Start: 600, End: 1320}}, // regular Tuesday
		{"2025-06-11", false, Window{}},                   // Wednesday not operating
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			w, open := cfg.EffectiveWindow(mustDate(t, tt.date))
			if open != tt.open || w != tt.window {
				t.Errorf("EffectiveWindow(%s) = %+v,%v want %+v,%v", tt.date, w, open, tt.window, tt.open)
			}
		})
	}

	t.Run("customHoursBeatsCustomDate", func(t *testing.T) {
		raw := RawConfig{
			CustomHours: map[string]RawDayHours{"2025-07-01": {Start: "12:00", End: "13:00"}},
			CustomDates: []RawCustomDate{{Date: "2025-07-01", StartTime: "08:00", EndTime: "20:00"}},
		}
		cfg, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		w, open := cfg.EffectiveWindow(mustDate(t, "2025-07-01"))
		if !open || w != (Window{Start: 720, End: 780}) {
			t.Errorf("got %+v,%v", w, open)
		}
	})
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{"24:30", 0, true},
		{"9:30", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"+1:00", 0, true},
		{"-0:30", 0, true},
		{" 9:30", 0, true},
		{"09:+5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRawConfigScan(t *testing.T) {
	var r RawConfig
	if err := r.Scan([]byte(`{"startTime":"10:00","endTime":"18:00","minPlayers":2}`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if r.StartTime != "10:00" || r.MinPlayers == nil || *r.MinPlayers != 2 {
		t.Errorf("scanned %+v", r)
	}
	if r.Fingerprint() == "" || r.Fingerprint() != r.Fingerprint() {
		t.Error("fingerprint should be stable and non-empty")
	}
	other := r
	other.StartTime = "11:00"
	if other.Fingerprint() == r.Fingerprint() {
		t.Error("different configs should fingerprint differently")
	}
}
