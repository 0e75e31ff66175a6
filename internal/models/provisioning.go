package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ProvisioningRequest is the validated, transformed input of the provisioning
// transaction. Hours and money are two-decimal strings.
type ProvisioningRequest struct {
	ConversationID string            `json:"conversationId" validate:"required"`
	TenantName     string            `json:"tenantName" validate:"required"`
	CityName       string            `json:"cityName" validate:"required"`
	ProvinceName   string            `json:"provinceName" validate:"required"`
	City           *ResolvedCity     `json:"city,omitempty"`
	AdminName      string            `json:"adminName" validate:"required"`
	AdminEmail     string            `json:"adminEmail" validate:"required,email"`
	CurrencyCode   string            `json:"currencyCode" validate:"required,len=3"`
	Facilities     []FacilityRequest `json:"facilities" validate:"required,min=1,dive"`
}

type FacilityRequest struct {
	Name      string            `json:"name" validate:"required"`
	SportID   int64             `json:"sportId,omitempty"`
	SportName string            `json:"sportName,omitempty" validate:"required_without=SportID"`
	Schedules []ScheduleRequest `json:"schedules" validate:"dive"`
}

type ScheduleRequest struct {
	Weekdays          []int  `json:"weekdays" validate:"required,min=1,dive,min=1,max=7"`
	StartTime         string `json:"startTime" validate:"required"`
	EndTime           string `json:"endTime" validate:"required"`
	SlotDurationHours string `json:"slotDurationHours" validate:"required"`
	Rate              string `json:"rate" validate:"required"`
}

// ProvisionedFacility lists the rows created for one facility.
type ProvisionedFacility struct {
	FieldID     int64   `json:"fieldId"`
	TerrainID   int64   `json:"terrainId"`
	ScheduleIDs []int64 `json:"scheduleIds"`
	PriceIDs    []int64 `json:"priceIds"`
}

// ProvisionedIDs identifies every row the provisioning transaction created
// for a tenant. It is stored as JSONB next to the tenant summary.
type ProvisionedIDs struct {
	TenantID       int64                 `json:"tenantId"`
	CustomerID     int64                 `json:"customerId"`
	SubscriptionID int64                 `json:"subscriptionId"`
	LicenceIDs     []int64               `json:"licenceIds"`
	AccessGroupID  int64                 `json:"accessGroupId"`
	AdminUserID    int64                 `json:"adminUserId"`
	PurseID        int64                 `json:"purseId"`
	CityID         int64                 `json:"cityId"`
	ProvinceID     int64                 `json:"provinceId"`
	Facilities     []ProvisionedFacility `json:"facilities"`
}

func (ids ProvisionedIDs) Value() (driver.Value, error) {
	return json.Marshal(ids)
}

func (ids *ProvisionedIDs) Scan(src interface{}) error {
	*ids = ProvisionedIDs{}
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, ids)
	case string:
		return json.Unmarshal([]byte(v), ids)
	default:
		return fmt.Errorf("cannot scan %T into ProvisionedIDs", src)
	}
}

// ProvisioningResult identifies everything the transaction created.
// AdminPassword is plaintext and only populated on the run that generated it.
type ProvisioningResult struct {
	ProvisionedIDs
	AdminLogin     string `json:"adminLogin"`
	AdminPassword  string `json:"adminPassword,omitempty"`
	AlreadyExisted bool   `json:"alreadyExisted"`
}
