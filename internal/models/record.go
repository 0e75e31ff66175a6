package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FieldName identifies a slot of the StructuredRecord.
type FieldName string

const (
	FieldTenantName          FieldName = "tenantName"
	FieldCity                FieldName = "city"
	FieldProvince            FieldName = "province"
	FieldCountryCode         FieldName = "countryCode"
	FieldPlaceResolutionHint FieldName = "placeResolutionHint"
	FieldAdminName           FieldName = "adminName"
	FieldAdminEmail          FieldName = "adminEmail"
	FieldLanguage            FieldName = "language"
	FieldFacilities          FieldName = "facilities"
	FieldConfirmed           FieldName = "confirmed"
	FieldEscalated           FieldName = "escalated"
)

// StructuredRecord is the accumulated result of a conversation. Optional
// strings are empty when unknown.
type StructuredRecord struct {
	TenantName          string                    `json:"tenantName,omitempty"`
	City                string                    `json:"city,omitempty"`
	Province            string                    `json:"province,omitempty"`
	CountryCode         string                    `json:"countryCode,omitempty"`
	PlaceResolutionHint string                    `json:"placeResolutionHint,omitempty"`
	AdminName           string                    `json:"adminName,omitempty"`
	AdminEmail          string                    `json:"adminEmail,omitempty"`
	Language            string                    `json:"language,omitempty"`
	Facilities          []Facility                `json:"facilities,omitempty"`
	Confirmed           bool                      `json:"confirmed"`
	LastError           *LastError                `json:"lastError,omitempty"`
	Escalated           *Escalation               `json:"escalated,omitempty"`
	FieldSources        map[FieldName]FieldSource `json:"fieldSources,omitempty"`
}

// IsEmpty reports whether nothing has been collected yet.
func (r StructuredRecord) IsEmpty() bool {
	return r.TenantName == "" && r.City == "" && r.AdminName == "" &&
		r.AdminEmail == "" && len(r.Facilities) == 0
}

// Clone returns a deep copy so reducers never alias the caller's slices or maps.
func (r StructuredRecord) Clone() StructuredRecord {
	out := r
	if r.Facilities != nil {
		out.Facilities = make([]Facility, len(r.Facilities))
		for i, f := range r.Facilities {
			out.Facilities[i] = f.Clone()
		}
	}
	if r.LastError != nil {
		le := *r.LastError
		out.LastError = &le
	}
	if r.Escalated != nil {
		esc := *r.Escalated
		out.Escalated = &esc
	}
	if r.FieldSources != nil {
		out.FieldSources = make(map[FieldName]FieldSource, len(r.FieldSources))
		for k, v := range r.FieldSources {
			out.FieldSources[k] = v
		}
	}
	return out
}

// Value stores the record as JSONB.
func (r StructuredRecord) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan reads the record from a JSONB column.
func (r *StructuredRecord) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = StructuredRecord{}
		return nil
	case []byte:
		if len(v) == 0 {
			*r = StructuredRecord{}
			return nil
		}
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into StructuredRecord", src)
	}
}

// FieldSource records which tool last wrote a field.
type FieldSource struct {
	Tool      string    `json:"tool"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastError is the most recent creation failure recorded on the conversation.
type LastError struct {
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TimestampUTC time.Time `json:"timestampUtc"`
	RetryCount   int       `json:"retryCount"`
	Retryable    bool      `json:"retryable"`
}

// Escalation marks a conversation where the user asked for a human.
type Escalation struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Facility is a bookable unit (court, pitch) of the center.
type Facility struct {
	Name      string     `json:"name,omitempty"`
	SportID   int64      `json:"sportId,omitempty"`
	SportName string     `json:"sportName,omitempty"`
	Schedules []Schedule `json:"schedules,omitempty"`
}

func (f Facility) Clone() Facility {
	out := f
	if f.Schedules != nil {
		out.Schedules = make([]Schedule, len(f.Schedules))
		for i, s := range f.Schedules {
			out.Schedules[i] = s.Clone()
		}
	}
	return out
}

// Schedule is a weekly opening window split into equal bookable slots.
// Weekdays run 1=Monday..7=Sunday.
type Schedule struct {
	Weekdays            []int           `json:"weekdays"`
	StartMinuteOfDay    int             `json:"startMinuteOfDay"`
	EndMinuteOfDay      int             `json:"endMinuteOfDay"`
	SlotDurationMinutes int             `json:"slotDurationMinutes"`
	RatePerSlot         decimal.Decimal `json:"ratePerSlot"`
}

const minutesPerDay = 24 * 60

func (s Schedule) Clone() Schedule {
	out := s
	out.Weekdays = append([]int(nil), s.Weekdays...)
	return out
}

// Normalized returns the schedule with weekdays deduplicated and sorted.
func (s Schedule) Normalized() Schedule {
	out := s.Clone()
	seen := map[int]bool{}
	days := out.Weekdays[:0]
	for _, d := range out.Weekdays {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	out.Weekdays = days
	return out
}

// Validate checks that the window is well formed and divisible into slots.
func (s Schedule) Validate() error {
	if len(s.Weekdays) == 0 {
		return fmt.Errorf("at least one weekday is required")
	}
	for _, d := range s.Weekdays {
		if d < 1 || d > 7 {
			return fmt.Errorf("weekday %d out of range 1..7", d)
		}
	}
	if s.StartMinuteOfDay < 0 || s.StartMinuteOfDay >= minutesPerDay {
		return fmt.Errorf("start minute %d out of range", s.StartMinuteOfDay)
	}
	if s.EndMinuteOfDay <= s.StartMinuteOfDay || s.EndMinuteOfDay > minutesPerDay {
		return fmt.Errorf("end minute %d must be after start minute %d and within the day", s.EndMinuteOfDay, s.StartMinuteOfDay)
	}
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	if span := s.EndMinuteOfDay - s.StartMinuteOfDay; span%s.SlotDurationMinutes != 0 {
		return fmt.Errorf("window of %d minutes is not divisible into %d-minute slots", span, s.SlotDurationMinutes)
	}
	if s.RatePerSlot.IsNegative() {
		return fmt.Errorf("rate per slot must not be negative")
	}
	return nil
}

// SlotCount is the number of bookable slots per day.
func (s Schedule) SlotCount() int {
	if s.SlotDurationMinutes <= 0 {
		return 0
	}
	return (s.EndMinuteOfDay - s.StartMinuteOfDay) / s.SlotDurationMinutes
}

// FormatMinuteOfDay renders a minute offset as HH:MM.
func FormatMinuteOfDay(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseMinuteOfDay parses HH:MM (24:00 allowed as end of day).
func ParseMinuteOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}
