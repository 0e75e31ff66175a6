package models

// ResolvedCity is the outcome of city resolution against the gazetteer.
type ResolvedCity struct {
	CityID        int64  `json:"cityId"`
	CanonicalName string `json:"canonicalName"`
	ProvinceID    int64  `json:"provinceId"`
	ProvinceName  string `json:"provinceName"`
	CountryID     *int64 `json:"countryId,omitempty"`
	CountryName   string `json:"countryName,omitempty"`
	CountryCode   string `json:"countryCode,omitempty"`
	CurrencyCode  string `json:"currencyCode,omitempty"`
	WasCreated    bool   `json:"wasCreated"`
	CorrectedFrom string `json:"correctedFrom,omitempty"`
}
