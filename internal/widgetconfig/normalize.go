package widgetconfig

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultSlotIntervalMinutes = 60
	DefaultMinPlayers          = 1
	DefaultMaxPlayers          = 10
	DefaultMaxLeadDays         = 365
	DefaultTicketTypeID        = "players"
	DefaultTicketTypeName      = "Players"
)

// ErrInvalidConfig is matched by every ValidationError
var ErrInvalidConfig = errors.New("invalid widget configuration")

// FieldError describes one violated field of a raw configuration
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field violation found by Normalize
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return ErrInvalidConfig.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Fields returns the names of the violated fields in report order
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field)
	}
	return out
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full English weekday names in any case
func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := ParseWeekday(fl.Field().String())
		return ok
	})
	return v
}

// collector accumulates field errors, keeping the first message per field
type collector struct {
	errs []FieldError
	seen map[string]bool
}

func (c *collector) add(field, format string, args ...interface{}) {
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[field] {
		return
	}
	c.seen[field] = true
	c.errs = append(c.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) has(field string) bool {
	return c.seen[field]
}

func (c *collector) fromValidator(err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			c.add("config", "%s", err.Error())
		}
		return
	}
	found := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		found = append(found, FieldError{Field: fieldPath(fe.Namespace()), Message: validationMessage(fe)})
	}
	// customHours keys are visited in map order; sort that run so reports are stable
	for i := 0; i < len(found); i++ {
		if !strings.HasPrefix(found[i].Field, "customHours[") {
			continue
		}
		j := i + 1
		for j < len(found) && strings.HasPrefix(found[j].Field, "customHours[") {
			j++
		}
		run := found[i:j]
		sort.SliceStable(run, func(a, b int) bool { return run[a].Field < run[b].Field })
		i = j - 1
	}
	for _, fe := range found {
		c.add(fe.Field, "%s", fe.Message)
	}
}

func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hhmm":
		return "must be a time of day in HH:MM format"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "weekday":
		return "must be a weekday name"
	case "timezone":
		return "must be a valid IANA time zone"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Normalize turns a raw configuration into a fully-populated WidgetConfig.
// It fills defaults and reports every violated field at once in a *ValidationError.
func Normalize(raw RawConfig) (*WidgetConfig, error) {
	var c collector
	c.fromValidator(validate.Struct(raw))

	cfg := &WidgetConfig{
		OperatingDays:       make(map[time.Weekday]bool),
		SlotIntervalMinutes: DefaultSlotIntervalMinutes,
		CustomHours:         make(map[Date]DayOverride),
		BlockedDates:        make(map[Date]struct{}),
		MinPlayers:          DefaultMinPlayers,
		Location:            time.UTC,
	}

	if raw.Timezone != "" && !c.has("timezone") {
		loc, err := time.LoadLocation(raw.Timezone)
		if err != nil {
			c.add("timezone", "must be a valid IANA time zone")
		} else {
			cfg.Location = loc
		}
	}

	for _, name := range raw.OperatingDays {
		if d, ok := ParseWeekday(name); ok {
			cfg.OperatingDays[d] = true
		}
	}

	global, globalOK := normalizeGlobalHours(raw, &c)
	if globalOK {
		cfg.StartTime, cfg.EndTime = global.Start, global.End
	}
	if len(cfg.OperatingDays) > 0 && !globalOK && !c.has("startTime") && !c.has("endTime") {
		c.add("startTime", "startTime and endTime are required when operatingDays are set")
	}

	if raw.SlotIntervalMinutes != nil {
		if *raw.SlotIntervalMinutes <= 0 {
			c.add("slotIntervalMinutes", "must be greater than zero")
		} else {
			cfg.SlotIntervalMinutes = *raw.SlotIntervalMinutes
		}
	}

	cfg.Advance = normalizeAdvance(raw.AdvanceBooking, &c)

	dates := make([]string, 0, len(raw.CustomHours))
	for key := range raw.CustomHours {
		dates = append(dates, key)
	}
	sort.Strings(dates)
	for _, key := range dates {
		hours := raw.CustomHours[key]
		field := fmt.Sprintf("customHours[%s]", key)
		d, err := ParseDate(key)
		if err != nil {
			continue
		}
		if hours.Closed {
			cfg.CustomHours[d] = DayOverride{Closed: true}
			continue
		}
		if hours.Start == "" || hours.End == "" {
			c.add(field, "start and end are required unless closed")
			continue
		}
		w, ok := parseWindow(hours.Start, hours.End)
		if !ok {
			continue
		}
		if w.Empty() {
			c.add(field, "start must be before end")
			continue
		}
		cfg.CustomHours[d] = DayOverride{Window: w}
	}

	seenDates := make(map[Date]bool)
	for i, cd := range raw.CustomDates {
		field := fmt.Sprintf("customDates[%d]", i)
		d, err := ParseDate(cd.Date)
		if err != nil {
			continue
		}
		if seenDates[d] {
			c.add(field+".date", "duplicate custom date %s", d)
			continue
		}
		seenDates[d] = true

		start, end := cd.StartTime, cd.EndTime
		if start == "" {
			start = raw.StartTime
		}
		if end == "" {
			end = raw.EndTime
		}
		if start == "" || end == "" {
			c.add(field, "startTime and endTime are required when no global hours are set")
			continue
		}
		w, ok := parseWindow(start, end)
		if !ok {
			continue
		}
		if w.Empty() {
			c.add(field, "startTime must be before endTime")
			continue
		}
		cfg.CustomDates = append(cfg.CustomDates, CustomDate{Date: d, Window: w})
	}
	sort.Slice(cfg.CustomDates, func(i, j int) bool {
		return cfg.CustomDates[i].Date.Before(cfg.CustomDates[j].Date)
	})

	for _, s := range raw.BlockedDates {
		if d, err := ParseDate(s); err == nil {
			cfg.BlockedDates[d] = struct{}{}
		}
	}

	cfg.TicketTypes = normalizeTicketTypes(raw.TicketTypes, &c)

	if raw.MinPlayers != nil && *raw.MinPlayers >= 1 {
		cfg.MinPlayers = *raw.MinPlayers
	}
	cfg.MaxPlayers = DefaultMaxPlayers
	if cfg.MinPlayers > cfg.MaxPlayers {
		cfg.MaxPlayers = cfg.MinPlayers
	}
	if raw.MaxPlayers != nil && *raw.MaxPlayers >= 1 {
		cfg.MaxPlayers = *raw.MaxPlayers
	}
	if cfg.MinPlayers > cfg.MaxPlayers {
		c.add("minPlayers", "must not exceed maxPlayers (%d > %d)", cfg.MinPlayers, cfg.MaxPlayers)
	}

	cfg.AdditionalQuestions = normalizeQuestions(raw.AdditionalQuestions, &c)

	if len(c.errs) > 0 {
		return nil, &ValidationError{Errors: c.errs}
	}
	return cfg, nil
}

func normalizeGlobalHours(raw RawConfig, c *collector) (Window, bool) {
	if raw.StartTime == "" && raw.EndTime == "" {
		return Window{}, false
	}
	if raw.StartTime == "" {
		c.add("startTime", "is required when endTime is set")
		return Window{}, false
	}
	if raw.EndTime == "" {
		c.add("endTime", "is required when startTime is set")
		return Window{}, false
	}
	w, ok := parseWindow(raw.StartTime, raw.EndTime)
	if !ok {
		return Window{}, false
	}
	if w.Empty() {
		c.add("endTime", "must be after startTime")
		return Window{}, false
	}
	return w, true
}

func normalizeAdvance(raw *RawAdvanceWindow, c *collector) AdvanceWindow {
	adv := AdvanceWindow{
		MaxLead:        DefaultMaxLeadDays * 24 * time.Hour,
		SameDayAllowed: true,
	}
	if raw == nil {
		return adv
	}
	if raw.MinLeadMinutes != nil && *raw.MinLeadMinutes >= 0 {
		adv.MinLead = time.Duration(*raw.MinLeadMinutes) * time.Minute
	}
	if raw.MaxLeadDays != nil && *raw.MaxLeadDays >= 0 {
		adv.MaxLead = time.Duration(*raw.MaxLeadDays) * 24 * time.Hour
	}
	if raw.SameDayAllowed != nil {
		adv.SameDayAllowed = *raw.SameDayAllowed
	}
	if adv.MinLead > adv.MaxLead {
		c.add("advanceBooking", "minLeadMinutes exceeds maxLeadDays")
	}
	return adv
}

func normalizeTicketTypes(raw []TicketType, c *collector) []TicketType {
	if len(raw) == 0 {
		return []TicketType{{ID: DefaultTicketTypeID, Name: DefaultTicketTypeName, PricePerUnit: 0}}
	}
	out := make([]TicketType, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, t := range raw {
		field := fmt.Sprintf("ticketTypes[%d]", i)
		if t.PricePerUnit < 0 {
			c.add(field+".pricePerUnit", "must not be negative")
		}
		if t.ID == "" {
			continue
		}
		if seen[t.ID] {
			c.add(field+".id", "duplicate ticket type id %q", t.ID)
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func normalizeQuestions(raw []FormField, c *collector) []FormField {
	out := make([]FormField, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, q := range raw {
		field := fmt.Sprintf("additionalQuestions[%d]", i)
		if q.ID != "" && seen[q.ID] {
			c.add(field+".id", "duplicate question id %q", q.ID)
			continue
		}
		seen[q.ID] = true
		if q.Type == "select" && len(q.Options) == 0 {
			c.add(field+".options", "select questions need at least one option")
			continue
		}
		out = append(out, q)
	}
	return out
}

func parseWindow(start, end string) (Window, bool) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, false
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, false
	}
	return Window{Start: s, End: e}, true
}

// Public derives the view of the configuration served to the embedded page
func (c *WidgetConfig) Public(widgetType string) *PublicConfig {
	pc := &PublicConfig{
		WidgetType:          widgetType,
		Timezone:            c.Location.String(),
		SlotIntervalMinutes: c.SlotIntervalMinutes,
		OperatingDays:       make([]string, 0, len(c.OperatingDays)),
		StartTime:           c.StartTime,
		EndTime:             c.EndTime,
		BlockedDates:        make([]Date, 0, len(c.BlockedDates)),
		TicketTypes:         c.TicketTypes,
		MinPlayers:          c.MinPlayers,
		MaxPlayers:          c.MaxPlayers,
		AdditionalQuestions: c.AdditionalQuestions,
		MaxLeadDays:         int(c.Advance.MaxLead / (24 * time.Hour)),
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if c.OperatingDays[d] {
			pc.OperatingDays = append(pc.OperatingDays, strings.ToLower(d.String()))
		}
	}
	for d := range c.BlockedDates {
		pc.BlockedDates = append(pc.BlockedDates, d)
	}
	sort.Slice(pc.BlockedDates, func(i, j int) bool {
		return pc.BlockedDates[i].Before(pc.BlockedDates[j])
	})
	return pc
}
