package resolvecity

import "center-onboarding/internal/models"

type Input struct {
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	PlaceID     string `json:"placeId,omitempty"`
}

// Output is the resolved city, flattened into the process variables.
type Output struct {
	models.ResolvedCity
}
