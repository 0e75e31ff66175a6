package applytoolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/pkg/registry"

	"github.com/shopspring/decimal"
)

// Kind names a tool call variant. Values match the registry tool names.
type Kind string

const (
	KindSaveCenterInfo      Kind = "save_center_info"
	KindSaveLocation        Kind = "save_location"
	KindSaveAdminInfo       Kind = "save_admin_info"
	KindAddFacility         Kind = "add_facility"
	KindUpdateFacility      Kind = "update_facility"
	KindDetectLanguage      Kind = "detect_language"
	KindRequestHumanHelp    Kind = "request_human_help"
	KindConfirmData         Kind = "confirm_data"
	KindCreateCenter        Kind = "create_center"
	KindRestartConversation Kind = "restart_conversation"
	KindUnknown             Kind = "unknown"
)

// ToolCall is the closed set of events the collector understands.
type ToolCall interface {
	Kind() Kind
	isToolCall()
}

type SaveCenterInfo struct {
	TenantName string `json:"tenantName"`
}

type SaveLocation struct {
	City        string `json:"city"`
	Province    string `json:"province"`
	CountryCode string `json:"countryCode"`
	PlaceID     string `json:"placeId"`
}

type SaveAdminInfo struct {
	AdminName  string `json:"adminName"`
	AdminEmail string `json:"adminEmail"`
}

// ScheduleArgs is a schedule as the model sends it: clock times and a rate
// given either as a number or a string.
type ScheduleArgs struct {
	Weekdays            []int           `json:"weekdays"`
	StartTime           string          `json:"startTime"`
	EndTime             string          `json:"endTime"`
	SlotDurationMinutes int             `json:"slotDurationMinutes"`
	RatePerSlot         decimal.Decimal `json:"ratePerSlot"`
}

type AddFacility struct {
	Name      string         `json:"name"`
	SportID   int64          `json:"sportId"`
	SportName string         `json:"sportName"`
	Schedules []ScheduleArgs `json:"schedules"`
}

// UpdateFacility patches the facility at Index. Nil fields are left untouched.
type UpdateFacility struct {
	Index     int             `json:"index"`
	Name      *string         `json:"name"`
	SportID   *int64          `json:"sportId"`
	SportName *string         `json:"sportName"`
	Schedules *[]ScheduleArgs `json:"schedules"`
}

type DetectLanguage struct {
	Language string `json:"language"`
}

type RequestHumanHelp struct {
	Reason string `json:"reason"`
}

type ConfirmData struct {
	Confirmed bool `json:"confirmed"`
}

type CreateCenter struct{}

type RestartConversation struct{}

// Unknown is a call to a tool outside the registry. It is logged and ignored.
type Unknown struct {
	Name string
}

func (SaveCenterInfo) Kind() Kind      { return KindSaveCenterInfo }
func (SaveLocation) Kind() Kind        { return KindSaveLocation }
func (SaveAdminInfo) Kind() Kind       { return KindSaveAdminInfo }
func (AddFacility) Kind() Kind         { return KindAddFacility }
func (UpdateFacility) Kind() Kind      { return KindUpdateFacility }
func (DetectLanguage) Kind() Kind      { return KindDetectLanguage }
func (RequestHumanHelp) Kind() Kind    { return KindRequestHumanHelp }
func (ConfirmData) Kind() Kind         { return KindConfirmData }
func (CreateCenter) Kind() Kind        { return KindCreateCenter }
func (RestartConversation) Kind() Kind { return KindRestartConversation }
func (Unknown) Kind() Kind             { return KindUnknown }

func (SaveCenterInfo) isToolCall()      {}
func (SaveLocation) isToolCall()        {}
func (SaveAdminInfo) isToolCall()       {}
func (AddFacility) isToolCall()         {}
func (UpdateFacility) isToolCall()      {}
func (DetectLanguage) isToolCall()      {}
func (RequestHumanHelp) isToolCall()    {}
func (ConfirmData) isToolCall()         {}
func (CreateCenter) isToolCall()        {}
func (RestartConversation) isToolCall() {}
func (Unknown) isToolCall()             {}

// ParseToolCall validates args against the registry schema for name and
// decodes them into the matching variant. Names the registry does not know
// become Unknown. Arguments may arrive as an object or as a JSON string
// holding one.
func ParseToolCall(reg *registry.Registry, name string, args []byte) (ToolCall, error) {
	name = strings.TrimSpace(name)
	if _, ok := reg.Tool(name); !ok {
		return Unknown{Name: name}, nil
	}

	raw, err := unquoteArguments(args)
	if err != nil {
		return nil, apperrors.NewInvalidToolArgumentsError(name, err.Error())
	}

	result, err := reg.Validate(name, raw)
	if err != nil {
		return nil, apperrors.NewInvalidToolArgumentsError(name, err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidToolArgumentsError(name, strings.Join(result.GetErrorMessages(), "; "))
	}

	var call ToolCall
	switch Kind(name) {
	case KindSaveCenterInfo:
		call, err = decode[SaveCenterInfo](raw)
	case KindSaveLocation:
		call, err = decode[SaveLocation](raw)
	case KindSaveAdminInfo:
		call, err = decode[SaveAdminInfo](raw)
	case KindAddFacility:
		call, err = decode[AddFacility](raw)
	case KindUpdateFacility:
		call, err = decode[UpdateFacility](raw)
	case KindDetectLanguage:
		call, err = decode[DetectLanguage](raw)
	case KindRequestHumanHelp:
		call, err = decode[RequestHumanHelp](raw)
	case KindConfirmData:
		call, err = decode[ConfirmData](raw)
	case KindCreateCenter:
		call = CreateCenter{}
	case KindRestartConversation:
		call = RestartConversation{}
	default:
		return Unknown{Name: name}, nil
	}
	if err != nil {
		return nil, apperrors.NewInvalidToolArgumentsError(name, err.Error())
	}
	return call, nil
}

func decode[T ToolCall](raw []byte) (ToolCall, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return v, nil
}

func unquoteArguments(args []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, fmt.Errorf("decode argument string: %w", err)
	}
	return bytes.TrimSpace([]byte(inner)), nil
}
