package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/utils"
)

// MaxMindProvider answers country code and details lookups from a local
// GeoLite2/GeoIP2 City database. It is the offline last resort behind the
// HTTP providers.
type MaxMindProvider struct {
	mu     sync.RWMutex
	dbPath string
	cityDb *geoip2.Reader
}

func NewMaxMindProvider(ctx context.Context, dbPath string) (*MaxMindProvider, error) {
	if dbPath == "" {
		return nil, errors.New("no MaxMind city database configured. Use providers.maxmind.db.city to define it")
	}

	return &MaxMindProvider{dbPath: dbPath}, nil
}

func readMaxMindDb(_ context.Context, file string) (*geoip2.Reader, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("cannot open the city database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", file)
	}

	return geoip2.Open(file)
}

func (mmp *MaxMindProvider) Name() string {
	return "maxmind"
}

func (mmp *MaxMindProvider) Start(ctx context.Context) error {
	log.Info().Str("db", mmp.dbPath).Msg("starting MaxMind Provider")
	return mmp.Refresh(ctx)
}

func (mmp *MaxMindProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	if query.Kind != CountryCode && query.Kind != IPDetails {
		return nil, utils.ErrNotApplicable
	}
	if utils.IsLocal(query.Address) {
		return nil, utils.ErrNotApplicable
	}

	ip := net.ParseIP(query.Address)
	if ip == nil {
		return nil, utils.ErrNotApplicable
	}

	mmp.mu.RLock()
	defer mmp.mu.RUnlock()

	if mmp.cityDb == nil {
		return nil, mmp.failure(errors.New("database not loaded"))
	}

	city, err := mmp.cityDb.City(ip)
	if err != nil {
		return nil, mmp.failure(err)
	}

	if city.Country.IsoCode == "" {
		return nil, mmp.failure(fmt.Errorf("%s not found in database", query.Address))
	}

	info := &utils.LookupResult{
		Address:     query.Address,
		CountryCode: city.Country.IsoCode,
		Source:      mmp.Name(),
		IsFallback:  asFallback,
	}

	if query.Kind == IPDetails {
		info.City = city.City.Names["en"]
		info.Postal = city.Postal.Code
		info.Timezone = city.Location.TimeZone
		if len(city.Subdivisions) > 0 {
			info.Region = city.Subdivisions[0].Names["en"]
		}
	}

	return info, nil
}

func (mmp *MaxMindProvider) failure(cause error) error {
	return &utils.ProviderError{
		Provider: mmp.Name(),
		Reason:   utils.FailureMalformed,
		Cause:    cause,
	}
}

func (mmp *MaxMindProvider) Shutdown(ctx context.Context) {
	mmp.mu.Lock()
	defer mmp.mu.Unlock()

	if mmp.cityDb != nil {
		mmp.cityDb.Close()
		mmp.cityDb = nil
	}
}

// Refresh reopens the database file so an updated copy on disk is picked up.
func (mmp *MaxMindProvider) Refresh(ctx context.Context) error {
	log.Info().Str("db", mmp.dbPath).Msg("refreshing MaxMind Provider")

	db, err := readMaxMindDb(ctx, mmp.dbPath)
	if err != nil {
		return err
	}

	mmp.mu.Lock()
	old := mmp.cityDb
	mmp.cityDb = db
	mmp.mu.Unlock()

	if old != nil {
		old.Close()
	}

	return nil
}
