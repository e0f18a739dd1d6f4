package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/cloud66-oss/ipinfo/utils"
)

// placeholderCountryCodes are "unknown" markers some databases return.
var placeholderCountryCodes = map[string]bool{
	"XX": true,
	"ZZ": true,
}

// locationPayload covers the JSON bodies of both ipinfo.io and ipapi.co.
// Field names match utils.LookupResult so copier can map them.
type locationPayload struct {
	Address     string `json:"ip"`
	CountryCode string `json:"country"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Postal      string `json:"postal"`
	Timezone    string `json:"timezone"`
	Org         string `json:"org"`

	Bogon  bool   `json:"bogon"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func decodePublicIPJSON(body []byte, _ Query) (*utils.LookupResult, error) {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("cannot parse a response: %w", err)
	}

	return publicIPResult(payload.IP)
}

func decodePublicIPText(body []byte, _ Query) (*utils.LookupResult, error) {
	return publicIPResult(string(body))
}

func publicIPResult(raw string) (*utils.LookupResult, error) {
	address := strings.TrimSpace(raw)
	if net.ParseIP(address) == nil {
		return nil, fmt.Errorf("not an IP address: %q", raw)
	}

	return &utils.LookupResult{Address: address}, nil
}

func decodeCountryCodeText(body []byte, query Query) (*utils.LookupResult, error) {
	code, err := normalizeCountryCode(string(body))
	if err != nil {
		return nil, err
	}

	return &utils.LookupResult{Address: query.Address, CountryCode: code}, nil
}

func decodeLocationJSON(body []byte, query Query) (*utils.LookupResult, error) {
	var payload locationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("cannot parse a response: %w", err)
	}

	switch {
	case payload.Error:
		return nil, fmt.Errorf("upstream reported an error: %s", payload.Reason)
	case payload.Bogon:
		return nil, errors.New("upstream reported a bogon address")
	case payload.CountryCode == "" && payload.City == "":
		return nil, errors.New("no location in response")
	}

	info := &utils.LookupResult{}
	if err := copier.Copy(info, &payload); err != nil {
		return nil, err
	}

	if info.Address == "" {
		info.Address = query.Address
	}
	info.CountryCode = strings.ToUpper(info.CountryCode)

	return info, nil
}

func decodeCountryInfoJSON(body []byte, query Query) (*utils.LookupResult, error) {
	country := &utils.CountryInfo{}
	if err := json.Unmarshal(body, country); err != nil {
		return nil, fmt.Errorf("cannot parse a response: %w", err)
	}

	if country.Name == "" {
		return nil, errors.New("country info without a name")
	}

	return &utils.LookupResult{
		CountryCode: query.CountryCode,
		Country:     country,
	}, nil
}

func normalizeCountryCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 || !isLetter(code[0]) || !isLetter(code[1]) {
		return "", fmt.Errorf("invalid country code %q", raw)
	}

	return code, nil
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
