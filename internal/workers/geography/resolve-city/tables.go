package resolvecity

import (
	"sort"
	"strings"
)

// Country is the static default for an ISO-3166-1 alpha-2 code.
type Country struct {
	Name     string
	Currency string
}

var countries = map[string]Country{
	"AD": {"Andorra", "EUR"},
	"AR": {"Argentina", "ARS"},
	"AT": {"Austria", "EUR"},
	"AU": {"Australia", "AUD"},
	"BE": {"Belgium", "EUR"},
	"BO": {"Bolivia", "BOB"},
	"BR": {"Brazil", "BRL"},
	"CA": {"Canada", "CAD"},
	"CH": {"Switzerland", "CHF"},
	"CL": {"Chile", "CLP"},
	"CO": {"Colombia", "COP"},
	"CR": {"Costa Rica", "CRC"},
	"DE": {"Germany", "EUR"},
	"DK": {"Denmark", "DKK"},
	"DO": {"Dominican Republic", "DOP"},
	"EC": {"Ecuador", "USD"},
	"ES": {"Spain", "EUR"},
	"FI": {"Finland", "EUR"},
	"FR": {"France", "EUR"},
	"GB": {"United Kingdom", "GBP"},
	"GR": {"Greece", "EUR"},
	"GT": {"Guatemala", "GTQ"},
	"IE": {"Ireland", "EUR"},
	"IT": {"Italy", "EUR"},
	"MA": {"Morocco", "MAD"},
	"MX": {"Mexico", "MXN"},
	"NL": {"Netherlands", "EUR"},
	"NO": {"Norway", "NOK"},
	"PA": {"Panama", "PAB"},
	"PE": {"Peru", "PEN"},
	"PL": {"Poland", "PLN"},
	"PT": {"Portugal", "EUR"},
	"PY": {"Paraguay", "PYG"},
	"SE": {"Sweden", "SEK"},
	"US": {"United States", "USD"},
	"UY": {"Uruguay", "UYU"},
	"VE": {"Venezuela", "VES"},
}

// LookupCountry returns the static defaults for code.
func LookupCountry(code string) (Country, bool) {
	c, ok := countries[strings.ToUpper(code)]
	return c, ok
}

// wellKnownCities maps normalized city names to their country code.
var wellKnownCities = map[string]string{
	"madrid":            "ES",
	"barcelona":         "ES",
	"valencia":          "ES",
	"sevilla":           "ES",
	"seville":           "ES",
	"zaragoza":          "ES",
	"malaga":            "ES",
	"murcia":            "ES",
	"palma":             "ES",
	"palma de mallorca": "ES",
	"las palmas":        "ES",
	"bilbao":            "ES",
	"alicante":          "ES",
	"cordoba":           "ES",
	"valladolid":        "ES",
	"vigo":              "ES",
	"gijon":             "ES",
	"granada":           "ES",
	"a coruna":          "ES",
	"vitoria":           "ES",
	"santander":         "ES",
	"pamplona":          "ES",
	"san sebastian":     "ES",
	"donostia":          "ES",
	"salamanca":         "ES",
	"marbella":          "ES",
	"lisboa":            "PT",
	"lisbon":            "PT",
	"porto":             "PT",
	"faro":              "PT",
	"paris":             "FR",
	"lyon":              "FR",
	"marseille":         "FR",
	"toulouse":          "FR",
	"bordeaux":          "FR",
	"roma":              "IT",
	"rome":              "IT",
	"milano":            "IT",
	"milan":             "IT",
	"berlin":            "DE",
	"munchen":           "DE",
	"munich":            "DE",
	"hamburg":           "DE",
	"london":            "GB",
	"manchester":        "GB",
	"dublin":            "IE",
	"amsterdam":         "NL",
	"rotterdam":         "NL",
	"bruxelles":         "BE",
	"brussels":          "BE",
	"zurich":            "CH",
	"geneve":            "CH",
	"geneva":            "CH",
	"wien":              "AT",
	"vienna":            "AT",
	"oslo":              "NO",
	"stockholm":         "SE",
	"kobenhavn":         "DK",
	"copenhagen":        "DK",
	"helsinki":          "FI",
	"warszawa":          "PL",
	"warsaw":            "PL",
	"athens":            "GR",
	"new york":          "US",
	"los angeles":       "US",
	"miami":             "US",
	"toronto":           "CA",
	"ciudad de mexico":  "MX",
	"mexico city":       "MX",
	"guadalajara":       "MX",
	"monterrey":         "MX",
	"buenos aires":      "AR",
	"rosario":           "AR",
	"mendoza":           "AR",
	"santiago de chile": "CL",
	"bogota":            "CO",
	"medellin":          "CO",
	"cali":              "CO",
	"lima":              "PE",
	"quito":             "EC",
	"guayaquil":         "EC",
	"montevideo":        "UY",
	"asuncion":          "PY",
	"sao paulo":         "BR",
	"rio de janeiro":    "BR",
	"andorra la vella":  "AD",
	"casablanca":        "MA",
	"panama":            "PA",
	"san jose":          "CR",
	"santo domingo":     "DO",
	"sydney":            "AU",
}

// wellKnownKeys lists wellKnownCities keys longest first so substring matching
// prefers "palma de mallorca" over "palma".
var wellKnownKeys = func() []string {
	keys := make([]string, 0, len(wellKnownCities))
	for k := range wellKnownCities {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// InferCountry guesses the country of a normalized city name: exact match
// first, then a whole-word match inside the name.
func InferCountry(normalized string) (string, bool) {
	if code, ok := wellKnownCities[normalized]; ok {
		return code, true
	}
	padded := " " + normalized + " "
	for _, key := range wellKnownKeys {
		if strings.Contains(padded, " "+key+" ") {
			return wellKnownCities[key], true
		}
	}
	return "", false
}
