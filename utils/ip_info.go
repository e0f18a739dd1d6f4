package utils

// LookupResult is the normalized answer of a single provider. Only the
// fields relevant to the query kind are filled in.
type LookupResult struct {
	Address     string       `json:"ip"`
	CountryCode string       `json:"country"`
	Region      string       `json:"region"`
	City        string       `json:"city"`
	Postal      string       `json:"postal"`
	Timezone    string       `json:"timezone"`
	Org         string       `json:"org"`
	Country     *CountryInfo `json:"country_info,omitempty"`
	Source      string       `json:"source"`
	IsFallback  bool         `json:"is_fallback"`
}

type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type Language struct {
	ISO6391    string `json:"iso639_1"`
	ISO6392    string `json:"iso639_2"`
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
}

// CountryInfo is the subset of the country reference payload we pass on.
type CountryInfo struct {
	Name           string     `json:"name"`
	Alpha2Code     string     `json:"alpha2Code"`
	Alpha3Code     string     `json:"alpha3Code"`
	NumericCode    string     `json:"numericCode"`
	NativeName     string     `json:"nativeName"`
	Capital        string     `json:"capital"`
	Region         string     `json:"region"`
	Subregion      string     `json:"subregion"`
	Demonym        string     `json:"demonym"`
	Population     int64      `json:"population"`
	Area           float64    `json:"area"`
	Flag           string     `json:"flag"`
	LatLng         []float64  `json:"latlng"`
	Timezones      []string   `json:"timezones"`
	Borders        []string   `json:"borders"`
	CallingCodes   []string   `json:"callingCodes"`
	TopLevelDomain []string   `json:"topLevelDomain"`
	Currencies     []Currency `json:"currencies"`
	Languages      []Language `json:"languages"`
}
