package provider

import (
	"context"

	"github.com/cloud66-oss/ipinfo/utils"
)

type QueryKind string

const (
	PublicIP    QueryKind = "public_ip"
	CountryCode QueryKind = "country_code"
	CountryInfo QueryKind = "country_info"
	IPDetails   QueryKind = "ip_details"
)

// Query is a single resolution request. Address is used by CountryCode and
// IPDetails, CountryCode by CountryInfo. PublicIP takes no input.
type Query struct {
	Kind        QueryKind
	Address     string
	CountryCode string
}

func PublicIPQuery() Query {
	return Query{Kind: PublicIP}
}

func CountryCodeQuery(address string) Query {
	return Query{Kind: CountryCode, Address: address}
}

func CountryInfoQuery(code string) Query {
	return Query{Kind: CountryInfo, CountryCode: code}
}

func IPDetailsQuery(address string) Query {
	return Query{Kind: IPDetails, Address: address}
}

// Key is the cache key of the query inside its kind's namespace.
func (q Query) Key() string {
	switch q.Kind {
	case PublicIP:
		return "self"
	case CountryInfo:
		return q.CountryCode
	default:
		return q.Address
	}
}

type IPProvider interface {
	Name() string
	Start(ctx context.Context) error
	Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error)
	Shutdown(ctx context.Context)
	Refresh(ctx context.Context) error
}
