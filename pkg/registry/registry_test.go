package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ToolSet(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, tool := range reg.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"add_facility", "confirm_data", "create_center", "detect_language", "request_human_help",
		"restart_conversation", "save_admin_info", "save_center_info", "save_location", "update_facility",
	}, names)
	assert.Equal(t, "1.0.0", reg.Version())
}

func TestRegistry_Validate(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name  string
		tool  string
		args  string
		valid bool
	}{
		{name: "center name", tool: "save_center_info", args: `{"tenantName":"Club X"}`, valid: true},
		{name: "center name missing", tool: "save_center_info", args: `{}`, valid: false},
		{name: "location with country", tool: "save_location", args: `{"city":"Madrid","countryCode":"ES"}`, valid: true},
		{name: "bad country code", tool: "save_location", args: `{"city":"Madrid","countryCode":"ESP"}`, valid: false},
		{
			name:  "facility with schedule",
			tool:  "add_facility",
			args:  `{"name":"Court 1","sportName":"padel","schedules":[{"weekdays":[1,2,3,4,5],"startTime":"09:00","endTime":"21:00","slotDurationMinutes":90,"ratePerSlot":20}]}`,
			valid: true,
		},
		{
			name:  "weekday out of range",
			tool:  "add_facility",
			args:  `{"name":"Court 1","schedules":[{"weekdays":[0],"startTime":"09:00","endTime":"21:00","slotDurationMinutes":90}]}`,
			valid: false,
		},
		{name: "confirm", tool: "confirm_data", args: `{"confirmed":true}`, valid: true},
		{name: "confirm wrong type", tool: "confirm_data", args: `{"confirmed":"yes"}`, valid: false},
		{name: "no args", tool: "create_center", args: ``, valid: true},
		{name: "null args", tool: "restart_conversation", args: `null`, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reg.Validate(tt.tool, []byte(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
		})
	}

	_, err = reg.Validate("send_fax", []byte(`{}`))
	assert.Error(t, err)
}

func TestParse_RejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`{"tools":[{"name":"a","parameters":{}},{"name":"a","parameters":{}}]}`))
	assert.Error(t, err)
}

func TestActivities(t *testing.T) {
	reg, err := DefaultActivities()
	require.NoError(t, err)

	act, ok := reg.Find("create-tenant-from-conversation")
	require.True(t, ok)
	assert.Contains(t, act.ErrorCodes, "SPORT_NOT_FOUND")

	_, ok = reg.Find("crm.user.create")
	assert.False(t, ok)

	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, os.WriteFile(path, activitiesJSON, 0o600))
	fromDisk, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, fromDisk.Activities, len(reg.Activities))
}

func TestActivityRegistry_Validate(t *testing.T) {
	reg, err := DefaultActivities()
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	valid := Activity{ID: "a", DisplayName: "A", Category: "c", TaskType: "a", Timeout: "5s"}

	tests := []struct {
		name    string
		mutate  func(*ActivityRegistry)
		wantErr string
	}{
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"missing id", func(r *ActivityRegistry) { r.Activities[0].ID = "" }, "required field: id"},
		{"missing task type", func(r *ActivityRegistry) { r.Activities[0].TaskType = "" }, "taskType"},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "ten seconds" }, "invalid timeout"},
		{"duplicate id", func(r *ActivityRegistry) {
			dup := valid
			dup.TaskType = "b"
			r.Activities = append(r.Activities, dup)
		}, "duplicate activity ID"},
		{"duplicate task type", func(r *ActivityRegistry) {
			dup := valid
			dup.ID = "b"
			r.Activities = append(r.Activities, dup)
		}, "duplicate task type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ActivityRegistry{Activities: []Activity{valid}}
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
