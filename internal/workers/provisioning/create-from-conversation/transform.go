package createfromconversation

import (
	"strings"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/models"
	checkreadiness "center-onboarding/internal/workers/conversation/check-readiness"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// validateRecord applies the creation preconditions in order: data present,
// confirmed, required fields, facilities, valid schedules.
func validateRecord(conv *models.Conversation) *apperrors.StandardError {
	rec := conv.Record
	if rec.IsEmpty() {
		return apperrors.NewNoDataError(conv.ID)
	}
	if !rec.Confirmed {
		return apperrors.NewNotConfirmedError(conv.ID)
	}

	readiness := checkreadiness.Check(rec)
	if len(readiness.Missing) == 1 && readiness.Missing[0] == models.FieldFacilities {
		return apperrors.NewNoFacilitiesError()
	}
	if !readiness.Ready {
		return apperrors.NewIncompleteDataError(checkreadiness.MissingNames(readiness.Missing))
	}

	// A facility may be created before its opening hours are known.
	if issues := checkreadiness.ScheduleIssues(rec); len(issues) > 0 {
		return apperrors.NewInvalidScheduleError(strings.Join(issues, "; "))
	}
	return nil
}

// SplitCity separates "City, Province" and "City (Province)". The province is
// empty when the text carries none.
func SplitCity(text string) (city, province string) {
	text = strings.TrimSpace(text)
	if open := strings.Index(text, "("); open > 0 && strings.HasSuffix(text, ")") {
		return strings.TrimSpace(text[:open]), strings.TrimSpace(text[open+1 : len(text)-1])
	}
	if comma := strings.Index(text, ","); comma > 0 {
		return strings.TrimSpace(text[:comma]), strings.TrimSpace(text[comma+1:])
	}
	return text, ""
}

// HoursString renders minutes as hours with two decimals (90 -> "1.50").
func HoursString(minutes int) string {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).StringFixed(2)
}

func buildFacilities(facilities []models.Facility) []models.FacilityRequest {
	out := make([]models.FacilityRequest, 0, len(facilities))
	for _, f := range facilities {
		req := models.FacilityRequest{
			Name:      f.Name,
			SportID:   f.SportID,
			SportName: f.SportName,
			Schedules: make([]models.ScheduleRequest, 0, len(f.Schedules)),
		}
		for _, s := range f.Schedules {
			s = s.Normalized()
			req.Schedules = append(req.Schedules, models.ScheduleRequest{
				Weekdays:          s.Weekdays,
				StartTime:         models.FormatMinuteOfDay(s.StartMinuteOfDay),
				EndTime:           models.FormatMinuteOfDay(s.EndMinuteOfDay),
				SlotDurationHours: HoursString(s.SlotDurationMinutes),
				Rate:              s.RatePerSlot.StringFixed(2),
			})
		}
		out = append(out, req)
	}
	return out
}

func buildRequest(conv *models.Conversation, city *models.ResolvedCity, cityName, provinceName, defaultCurrency string) *models.ProvisioningRequest {
	rec := conv.Record
	currency := defaultCurrency
	if city != nil {
		cityName = city.CanonicalName
		if city.ProvinceName != "" {
			provinceName = city.ProvinceName
		}
		if city.CurrencyCode != "" {
			currency = city.CurrencyCode
		}
	}
	if provinceName == "" {
		provinceName = cityName
	}
	return &models.ProvisioningRequest{
		ConversationID: conv.ID,
		TenantName:     rec.TenantName,
		CityName:       cityName,
		ProvinceName:   provinceName,
		City:           city,
		AdminName:      rec.AdminName,
		AdminEmail:     rec.AdminEmail,
		CurrencyCode:   strings.ToUpper(currency),
		Facilities:     buildFacilities(rec.Facilities),
	}
}
