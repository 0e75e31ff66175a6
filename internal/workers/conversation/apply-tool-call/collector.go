package applytoolcall

import (
	"fmt"
	"strings"
	"time"

	"center-onboarding/internal/common/validation"
	"center-onboarding/internal/models"
	checkreadiness "center-onboarding/internal/workers/conversation/check-readiness"
)

// Outcome describes what Apply did with a call.
type Outcome struct {
	Kind      Kind
	Applied   bool
	Changed   []models.FieldName
	Warnings  []string
	Ready     bool
	Missing   []models.FieldName
	Confirmed bool
}

// Apply merges call into rec and returns the next record. It never writes an
// empty value over a present one and records which tool set each field. A
// data change after confirmation withdraws the confirmation. Apply has no side
// effects; persisting the record is up to the caller.
func Apply(rec models.StructuredRecord, call ToolCall, now time.Time) (models.StructuredRecord, Outcome) {
	m := &merger{rec: rec.Clone(), tool: string(call.Kind()), now: now.UTC()}
	out := Outcome{Kind: call.Kind()}

	switch c := call.(type) {
	case SaveCenterInfo:
		m.setString(models.FieldTenantName, &m.rec.TenantName, c.TenantName)

	case SaveLocation:
		cityChanged := m.setString(models.FieldCity, &m.rec.City, c.City)
		m.setString(models.FieldProvince, &m.rec.Province, c.Province)
		if code := strings.ToUpper(strings.TrimSpace(c.CountryCode)); code != "" {
			if isCountryCode(code) {
				m.setString(models.FieldCountryCode, &m.rec.CountryCode, code)
			} else {
				m.warn("ignored countryCode %q: expected two letters", c.CountryCode)
			}
		}
		// A place id only describes the city it came with.
		if placeID := strings.TrimSpace(c.PlaceID); placeID != "" {
			m.setString(models.FieldPlaceResolutionHint, &m.rec.PlaceResolutionHint, placeID)
		} else if cityChanged && m.rec.PlaceResolutionHint != "" {
			m.rec.PlaceResolutionHint = ""
			m.touch(models.FieldPlaceResolutionHint)
		}

	case SaveAdminInfo:
		m.setString(models.FieldAdminName, &m.rec.AdminName, c.AdminName)
		if email := strings.TrimSpace(c.AdminEmail); email != "" && validation.ValidateEmail(email) {
			m.setString(models.FieldAdminEmail, &m.rec.AdminEmail, email)
		}

	case AddFacility:
		facility := models.Facility{
			Name:      strings.TrimSpace(c.Name),
			SportID:   c.SportID,
			SportName: strings.TrimSpace(c.SportName),
			Schedules: m.convertSchedules(len(m.rec.Facilities), c.Schedules),
		}
		if facility.Name == "" {
			m.warn("facility without a name ignored")
			break
		}
		if facility.SportID == 0 && facility.SportName == "" {
			m.warn("facility %q has no sport yet", facility.Name)
		}
		m.rec.Facilities = append(m.rec.Facilities, facility)
		m.touch(models.FieldFacilities)

	case UpdateFacility:
		if c.Index < 0 || c.Index >= len(m.rec.Facilities) {
			m.warn("update_facility index %d out of range (have %d facilities)", c.Index, len(m.rec.Facilities))
			break
		}
		m.patchFacility(c)

	case DetectLanguage:
		if lang := strings.TrimSpace(c.Language); lang != "" {
			m.rec.Language = lang
			m.touch(models.FieldLanguage)
		}

	case RequestHumanHelp:
		m.rec.Escalated = &models.Escalation{Reason: strings.TrimSpace(c.Reason), RequestedAt: m.now}
		m.touch(models.FieldEscalated)

	case ConfirmData:
		if !c.Confirmed {
			if m.rec.Confirmed {
				m.rec.Confirmed = false
				m.touch(models.FieldConfirmed)
			}
			break
		}
		gate := checkreadiness.Check(m.rec)
		if !gate.Ready {
			m.warn("cannot confirm yet, missing: %s", strings.Join(checkreadiness.MissingNames(gate.Missing), ", "))
			break
		}
		m.rec.Confirmed = true
		m.touch(models.FieldConfirmed)
	}

	if m.dataChanged && rec.Confirmed && m.rec.Confirmed {
		m.rec.Confirmed = false
		m.touch(models.FieldConfirmed)
		m.warn("collected data changed, confirmation withdrawn")
	}

	gate := checkreadiness.Check(m.rec)
	out.Applied = len(m.changed) > 0
	out.Changed = m.changed
	out.Warnings = m.warnings
	out.Ready = gate.Ready
	out.Missing = gate.Missing
	out.Confirmed = m.rec.Confirmed
	return m.rec, out
}

type merger struct {
	rec         models.StructuredRecord
	tool        string
	now         time.Time
	changed     []models.FieldName
	warnings    []string
	dataChanged bool
}

func (m *merger) touch(field models.FieldName) {
	if m.rec.FieldSources == nil {
		m.rec.FieldSources = map[models.FieldName]models.FieldSource{}
	}
	m.rec.FieldSources[field] = models.FieldSource{Tool: m.tool, UpdatedAt: m.now}
	for _, f := range m.changed {
		if f == field {
			return
		}
	}
	m.changed = append(m.changed, field)
	switch field {
	case models.FieldLanguage, models.FieldEscalated, models.FieldConfirmed:
	default:
		m.dataChanged = true
	}
}

// setString writes a non-empty trimmed value and reports whether it differed.
func (m *merger) setString(field models.FieldName, dst *string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || value == *dst {
		return false
	}
	*dst = value
	m.touch(field)
	return true
}

func (m *merger) warn(format string, args ...interface{}) {
	m.warnings = append(m.warnings, fmt.Sprintf(format, args...))
}

func (m *merger) patchFacility(c UpdateFacility) {
	f := &m.rec.Facilities[c.Index]
	changed := false

	if c.Name != nil {
		if name := strings.TrimSpace(*c.Name); name != "" && name != f.Name {
			f.Name = name
			changed = true
		}
	}
	if c.SportID != nil && *c.SportID > 0 && *c.SportID != f.SportID {
		f.SportID = *c.SportID
		changed = true
	}
	if c.SportName != nil {
		if sport := strings.TrimSpace(*c.SportName); sport != "" && sport != f.SportName {
			f.SportName = sport
			// A new sport name invalidates an id resolved for the old one.
			if c.SportID == nil {
				f.SportID = 0
			}
			changed = true
		}
	}
	if c.Schedules != nil {
		schedules := m.convertSchedules(c.Index, *c.Schedules)
		if len(schedules) > 0 {
			f.Schedules = schedules
			changed = true
		} else if len(*c.Schedules) > 0 {
			m.warn("facilities[%d]: no valid schedule in update, kept previous schedules", c.Index)
		}
	}

	if changed {
		m.touch(models.FieldFacilities)
	}
}

func (m *merger) convertSchedules(facilityIndex int, args []ScheduleArgs) []models.Schedule {
	var out []models.Schedule
	for i, a := range args {
		s, err := ToSchedule(a)
		if err != nil {
			m.warn("facilities[%d].schedules[%d] dropped: %v", facilityIndex, i, err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// ToSchedule converts clock-time arguments into a validated schedule.
func ToSchedule(a ScheduleArgs) (models.Schedule, error) {
	start, err := models.ParseMinuteOfDay(a.StartTime)
	if err != nil {
		return models.Schedule{}, err
	}
	end, err := models.ParseMinuteOfDay(a.EndTime)
	if err != nil {
		return models.Schedule{}, err
	}
	s := models.Schedule{
		Weekdays:            a.Weekdays,
		StartMinuteOfDay:    start,
		EndMinuteOfDay:      end,
		SlotDurationMinutes: a.SlotDurationMinutes,
		RatePerSlot:         a.RatePerSlot,
	}.Normalized()
	if err := s.Validate(); err != nil {
		return models.Schedule{}, err
	}
	return s, nil
}

func isCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
