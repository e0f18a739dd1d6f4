package provider

const (
	IpifyEndpoint             = "https://api.ipify.org?format=json"
	IPInfoPublicIPEndpoint    = "https://ipinfo.io/ip"
	IPInfoCountryCodeEndpoint = "https://ipinfo.io/{address}/country"
	IPInfoDetailsEndpoint     = "https://ipinfo.io/{address}/json"
	IpapiCountryCodeEndpoint  = "https://ipapi.co/{address}/country"
	IpapiDetailsEndpoint      = "https://ipapi.co/{address}/json"
	RestCountriesEndpoint     = "https://restcountries.com/v2/alpha/{code}"
)

func NewIpifyProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	return newHTTPProvider("ipify", PublicIP, orDefault(endpoint, IpifyEndpoint), opts, decodePublicIPJSON)
}

func NewIPInfoPublicIPProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	return newHTTPProvider("ipinfo", PublicIP, orDefault(endpoint, IPInfoPublicIPEndpoint), opts, decodePublicIPText)
}

func NewIPInfoCountryCodeProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	hp := newHTTPProvider("ipinfo", CountryCode, orDefault(endpoint, IPInfoCountryCodeEndpoint), opts, decodeCountryCodeText)
	hp.applicable = publicAddressOnly
	return hp
}

func NewIPInfoDetailsProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	hp := newHTTPProvider("ipinfo", IPDetails, orDefault(endpoint, IPInfoDetailsEndpoint), opts, decodeLocationJSON)
	hp.applicable = publicAddressOnly
	return hp
}

func NewIpapiCountryCodeProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	hp := newHTTPProvider("ipapi", CountryCode, orDefault(endpoint, IpapiCountryCodeEndpoint), opts, decodeCountryCodeText)
	hp.applicable = publicAddressOnly
	return hp
}

func NewIpapiDetailsProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	hp := newHTTPProvider("ipapi", IPDetails, orDefault(endpoint, IpapiDetailsEndpoint), opts, decodeLocationJSON)
	hp.applicable = publicAddressOnly
	return hp
}

func NewRestCountriesProvider(opts HTTPOptions, endpoint string) *HTTPProvider {
	hp := newHTTPProvider("restcountries", CountryInfo, orDefault(endpoint, RestCountriesEndpoint), opts, decodeCountryInfoJSON)
	hp.applicable = func(query Query) bool {
		return !placeholderCountryCodes[query.CountryCode]
	}
	return hp
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
