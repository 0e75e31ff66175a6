package createfromconversation

import (
	"testing"

	"center-onboarding/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitCity(t *testing.T) {
	tests := []struct {
		in           string
		wantCity     string
		wantProvince string
	}{
		{"Madrid", "Madrid", ""},
		{"Getafe, Madrid", "Getafe", "Madrid"},
		{"Getafe (Madrid)", "Getafe", "Madrid"},
		{"  Dos Hermanas ,  Sevilla ", "Dos Hermanas", "Sevilla"},
		{"(Madrid)", "(Madrid)", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			city, province := SplitCity(tt.in)
			assert.Equal(t, tt.wantCity, city)
			assert.Equal(t, tt.wantProvince, province)
		})
	}
}

func TestHoursString(t *testing.T) {
	assert.Equal(t, "1.50", HoursString(90))
	assert.Equal(t, "1.00", HoursString(60))
	assert.Equal(t, "0.75", HoursString(45))
	assert.Equal(t, "0.83", HoursString(50))
}

func TestBuildRequest_Currency(t *testing.T) {
	conv := clubXConversation()

	req := buildRequest(conv, nil, "Madrd", "", "eur")
	assert.Equal(t, "EUR", req.CurrencyCode)
	assert.Equal(t, "Madrd", req.CityName)
	assert.Equal(t, "Madrd", req.ProvinceName)
	assert.Nil(t, req.City)

	city := &models.ResolvedCity{CityID: 9, CanonicalName: "Nordkapp", ProvinceName: "Finnmark", CurrencyCode: "NOK"}
	req = buildRequest(conv, city, "Nordkap", "", "EUR")
	assert.Equal(t, "NOK", req.CurrencyCode)
	assert.Equal(t, "Nordkapp", req.CityName)
	assert.Equal(t, "Finnmark", req.ProvinceName)
	assert.Same(t, city, req.City)
}

func TestBuildFacilities_RateRounding(t *testing.T) {
	facilities := buildFacilities([]models.Facility{{
		Name:    "Court A",
		SportID: 3,
		Schedules: []models.Schedule{{
			Weekdays:            []int{6, 6, 7},
			StartMinuteOfDay:    8 * 60,
			EndMinuteOfDay:      24 * 60,
			SlotDurationMinutes: 60,
			RatePerSlot:         decimal.RequireFromString("9.999"),
		}},
	}})

	assert.Len(t, facilities, 1)
	s := facilities[0].Schedules[0]
	assert.Equal(t, []int{6, 7}, s.Weekdays)
	assert.Equal(t, "24:00", s.EndTime)
	assert.Equal(t, "10.00", s.Rate)
	assert.Equal(t, int64(3), facilities[0].SportID)
}
