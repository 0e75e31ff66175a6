package checkreadiness

import (
	"fmt"

	"center-onboarding/internal/models"
)

// RequiredFields are checked in this order; Missing preserves it.
var RequiredFields = []models.FieldName{
	models.FieldTenantName,
	models.FieldCity,
	models.FieldAdminName,
	models.FieldAdminEmail,
	models.FieldFacilities,
}

type Result struct {
	Ready   bool               `json:"ready"`
	Missing []models.FieldName `json:"missing"`
}

// Check reports which required fields are still absent. Confirmation is not
// part of readiness.
func Check(rec models.StructuredRecord) Result {
	missing := make([]models.FieldName, 0, len(RequiredFields))
	for _, field := range RequiredFields {
		if !present(rec, field) {
			missing = append(missing, field)
		}
	}
	return Result{Ready: len(missing) == 0, Missing: missing}
}

func present(rec models.StructuredRecord, field models.FieldName) bool {
	switch field {
	case models.FieldTenantName:
		return rec.TenantName != ""
	case models.FieldCity:
		return rec.City != ""
	case models.FieldAdminName:
		return rec.AdminName != ""
	case models.FieldAdminEmail:
		return rec.AdminEmail != ""
	case models.FieldFacilities:
		return len(rec.Facilities) > 0
	}
	return true
}

// ScheduleIssues lists every schedule of rec that fails validation, as
// "facilities[i].schedules[j]: reason".
func ScheduleIssues(rec models.StructuredRecord) []string {
	var issues []string
	for i, f := range rec.Facilities {
		for j, s := range f.Schedules {
			if err := s.Validate(); err != nil {
				issues = append(issues, fmt.Sprintf("facilities[%d].schedules[%d]: %v", i, j, err))
			}
		}
	}
	return issues
}

// MissingNames converts field names for job variables and error messages.
func MissingNames(fields []models.FieldName) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
