package widgetconfig

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyWidget is the gin context key under which the resolved widget is stored
const ContextKeyWidget = "widget"

// WidgetFromContext returns the widget resolved by the embed key middleware
func WidgetFromContext(c *gin.Context) (*Widget, bool) {
	v, ok := c.Get(ContextKeyWidget)
	if !ok {
		return nil, false
	}
	w, ok := v.(*Widget)
	return w, ok && w != nil
}

// Widget binds one venue/activity to its embed key and raw configuration
type Widget struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VenueID    uuid.UUID `gorm:"type:uuid;index;not null" json:"venue_id"`
	ActivityID uuid.UUID `gorm:"type:uuid;index;not null" json:"activity_id"`
	Name       string    `gorm:"not null" json:"name"`
	WidgetType string    `gorm:"type:varchar(20);not null;default:'farebook'" json:"widget_type"`
	// EmbedKey is issued by the database trigger and never written by the application.
	EmbedKey  string    `gorm:"type:varchar(16);uniqueIndex;<-:false" json:"embed_key"`
	Config    RawConfig `gorm:"type:jsonb;not null;default:'{}'" json:"config"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Widget
func (Widget) TableName() string {
	return "widgets"
}

// RawConfig is the loosely-typed configuration as authored by the venue operator.
// Every field is optional; Normalize fills defaults and enforces the field rules.
type RawConfig struct {
	OperatingDays       []string               `json:"operatingDays,omitempty" validate:"omitempty,dive,weekday"`
	StartTime           string                 `json:"startTime,omitempty" validate:"omitempty,hhmm"`
	EndTime             string                 `json:"endTime,omitempty" validate:"omitempty,hhmm"`
	SlotIntervalMinutes *int                   `json:"slotIntervalMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
	AdvanceBooking      *RawAdvanceWindow      `json:"advanceBooking,omitempty"`
	CustomHours         map[string]RawDayHours `json:"customHours,omitempty" validate:"omitempty,dive,keys,isodate,endkeys"`
	CustomDates         []RawCustomDate        `json:"customDates,omitempty" validate:"omitempty,dive"`
	BlockedDates        []string               `json:"blockedDates,omitempty" validate:"omitempty,dive,isodate"`
	TicketTypes         []TicketType           `json:"ticketTypes,omitempty" validate:"omitempty,dive"`
	MinPlayers          *int                   `json:"minPlayers,omitempty" validate:"omitempty,min=1"`
	MaxPlayers          *int                   `json:"maxPlayers,omitempty" validate:"omitempty,min=1"`
	AdditionalQuestions []FormField            `json:"additionalQuestions,omitempty" validate:"omitempty,dive"`
	Timezone            string                 `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// RawAdvanceWindow is the authored lead-time range
type RawAdvanceWindow struct {
	MinLeadMinutes *int  `json:"minLeadMinutes,omitempty" validate:"omitempty,min=0"`
	MaxLeadDays    *int  `json:"maxLeadDays,omitempty" validate:"omitempty,min=0,max=3650"`
	SameDayAllowed *bool `json:"sameDayAllowed,omitempty"`
}

// RawDayHours overrides the opening hours of one date; Closed wins over Start/End
type RawDayHours struct {
	Start  string `json:"start,omitempty" validate:"omitempty,hhmm"`
	End    string `json:"end,omitempty" validate:"omitempty,hhmm"`
	Closed bool   `json:"closed,omitempty"`
}

// RawCustomDate is a one-off open date; missing times fall back to the global hours
type RawCustomDate struct {
	Date      string `json:"date" validate:"required,isodate"`
	StartTime string `json:"startTime,omitempty" validate:"omitempty,hhmm"`
	EndTime   string `json:"endTime,omitempty" validate:"omitempty,hhmm"`
}

// TicketType is a priced admission category
type TicketType struct {
	ID           string  `json:"id" validate:"required,max=64"`
	Name         string  `json:"name" validate:"required,max=120"`
	PricePerUnit float64 `json:"pricePerUnit" validate:"gte=0"`
}

// FormField is an extra question shown on the booking form
type FormField struct {
	ID          string   `json:"id" validate:"required,max=64"`
	Label       string   `json:"label" validate:"required,max=255"`
	Type        string   `json:"type" validate:"required,oneof=text email phone number select checkbox textarea date"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Value implements the driver.Valuer interface for database storage
func (r RawConfig) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for database retrieval
func (r *RawConfig) Scan(value interface{}) error {
	if value == nil {
		*r = RawConfig{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(data, r)
}

// GormDataType tells GORM how to handle this type
func (RawConfig) GormDataType() string {
	return "jsonb"
}

// Fingerprint returns a stable digest of the configuration, used in memoization keys
func (r RawConfig) Fingerprint() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Date is a calendar date in the venue's local time zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// At returns the instant at the given time of day on this date in loc
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(tod)/60, int(tod)%60, 0, 0, loc)
}

// Weekday returns the day of the week
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is earlier than other
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes the date as YYYY-MM-DD
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a local wall-clock time in minutes since midnight. 24:00 is allowed as a closing time.
type TimeOfDay int

// ParseTimeOfDay parses an HH:MM string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || !twoDigits(parts[0]) || !twoDigits(parts[1]) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if h == 24 && m == 0 {
		return TimeOfDay(24 * 60), nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON encodes the time as HH:MM
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an HH:MM string
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is a half-open opening interval [Start, End) on one day
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Empty reports whether the window has no length
func (w Window) Empty() bool {
	return w.End <= w.Start
}

// DayOverride replaces the regular hours for one date
type DayOverride struct {
	Closed bool
	Window Window
}

// CustomDate is a one-off open date
type CustomDate struct {
	Date   Date
	Window Window
}

// AdvanceWindow bounds how far ahead of now a slot may start
type AdvanceWindow struct {
	MinLead        time.Duration
	MaxLead        time.Duration
	SameDayAllowed bool
}

// WidgetConfig is the normalized configuration every downstream component consumes
type WidgetConfig struct {
	OperatingDays       map[time.Weekday]bool
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	SlotIntervalMinutes int
	Advance             AdvanceWindow
	CustomHours         map[Date]DayOverride
	CustomDates         []CustomDate
	BlockedDates        map[Date]struct{}
	TicketTypes         []TicketType
	MinPlayers          int
	MaxPlayers          int
	AdditionalQuestions []FormField
	Location            *time.Location
}

// SlotInterval returns the slot length as a duration
func (c *WidgetConfig) SlotInterval() time.Duration {
	return time.Duration(c.SlotIntervalMinutes) * time.Minute
}

// IsBlocked reports whether the date is a hard blackout
func (c *WidgetConfig) IsBlocked(d Date) bool {
	_, ok := c.BlockedDates[d]
	return ok
}

// EffectiveWindow resolves the opening window for a date.
// Precedence: blockedDates, customHours, customDates, operatingDays.
func (c *WidgetConfig) EffectiveWindow(d Date) (Window, bool) {
	if c.IsBlocked(d) {
		return Window{}, false
	}
	if o, ok := c.CustomHours[d]; ok {
		if o.Closed {
			return Window{}, false
		}
		return o.Window, !o.Window.Empty()
	}
	for _, cd := range c.CustomDates {
		if cd.Date == d {
			return cd.Window, !cd.Window.Empty()
		}
	}
	if c.OperatingDays[d.Weekday()] {
		w := Window{Start: c.StartTime, End: c.EndTime}
		return w, !w.Empty()
	}
	return Window{}, false
}

// TicketType returns the ticket type with the given id
func (c *WidgetConfig) TicketType(id string) (TicketType, bool) {
	for _, t := range c.TicketTypes {
		if t.ID == id {
			return t, true
		}
	}
	return TicketType{}, false
}

// PublicConfig is the subset of the configuration exposed to the embedded page
type PublicConfig struct {
	WidgetType          string       `json:"widget_type"`
	Timezone            string       `json:"timezone"`
	SlotIntervalMinutes int          `json:"slot_interval_minutes"`
	OperatingDays       []string     `json:"operating_days"`
	StartTime           TimeOfDay    `json:"start_time"`
	EndTime             TimeOfDay    `json:"end_time"`
	BlockedDates        []Date       `json:"blocked_dates"`
	TicketTypes         []TicketType `json:"ticket_types"`
	MinPlayers          int          `json:"min_players"`
	MaxPlayers          int          `json:"max_players"`
	AdditionalQuestions []FormField  `json:"additional_questions"`
	MaxLeadDays         int          `json:"max_lead_days"`
}
