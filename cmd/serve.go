package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloud66-oss/ipinfo/cache"
	"github.com/cloud66-oss/ipinfo/metrics"
	"github.com/cloud66-oss/ipinfo/provider"
	"github.com/cloud66-oss/ipinfo/resolver"
	"github.com/cloud66-oss/ipinfo/utils"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use: "serve",
	Run: execServe,
}

func init() {
	// api server
	serveCmd.PersistentFlags().String("binding", "0.0.0.0", "API binding")
	serveCmd.PersistentFlags().Int("port", 3000, "API port")
	serveCmd.PersistentFlags().String("environment", "production", "runtime environment")

	serveCmd.PersistentFlags().Duration("upstream.timeout", 5*time.Second, "timeout of every upstream call")
	serveCmd.PersistentFlags().String("upstream.user_agent", utils.DefaultUserAgent, "User-Agent sent upstream")
	serveCmd.PersistentFlags().Bool("upstream.insecure_skip_verify", false, "skip upstream TLS verification outside production")

	serveCmd.PersistentFlags().Bool("rate_limit.enabled", true, "rate limit enabled")
	serveCmd.PersistentFlags().Duration("rate_limit.window", 15*time.Minute, "rate limit window")
	serveCmd.PersistentFlags().Int("rate_limit.max", 100, "requests allowed per client and window")

	serveCmd.PersistentFlags().Bool("providers.ipstack.enabled", false, "IPStack enabled")
	serveCmd.PersistentFlags().String("providers.ipstack.apikey", "", "IPStack API key")
	serveCmd.PersistentFlags().Bool("providers.maxmind.enabled", false, "MaxMind enabled")
	serveCmd.PersistentFlags().String("providers.maxmind.db.city", "", "MaxMind city database")
	serveCmd.PersistentFlags().Bool("providers.cascade.stop_on_error", false, "stop a cascade at the first failing provider")

	serveCmd.PersistentFlags().String("cache.backend", "local", "cache backend: local or redis")
	serveCmd.PersistentFlags().String("cache.redis.addr", "localhost:6379", "redis address")

	viper.BindPFlag("api.binding", serveCmd.PersistentFlags().Lookup("binding"))
	viper.BindPFlag("api.port", serveCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("environment", serveCmd.PersistentFlags().Lookup("environment"))

	viper.BindPFlag("upstream.timeout", serveCmd.PersistentFlags().Lookup("upstream.timeout"))
	viper.BindPFlag("upstream.user_agent", serveCmd.PersistentFlags().Lookup("upstream.user_agent"))
	viper.BindPFlag("upstream.insecure_skip_verify", serveCmd.PersistentFlags().Lookup("upstream.insecure_skip_verify"))

	viper.BindPFlag("rate_limit.enabled", serveCmd.PersistentFlags().Lookup("rate_limit.enabled"))
	viper.BindPFlag("rate_limit.window", serveCmd.PersistentFlags().Lookup("rate_limit.window"))
	viper.BindPFlag("rate_limit.max", serveCmd.PersistentFlags().Lookup("rate_limit.max"))

	viper.BindPFlag("providers.ipstack.enabled", serveCmd.PersistentFlags().Lookup("providers.ipstack.enabled"))
	viper.BindPFlag("providers.ipstack.apikey", serveCmd.PersistentFlags().Lookup("providers.ipstack.apikey"))
	viper.BindPFlag("providers.maxmind.enabled", serveCmd.PersistentFlags().Lookup("providers.maxmind.enabled"))
	viper.BindPFlag("providers.maxmind.db.city", serveCmd.PersistentFlags().Lookup("providers.maxmind.db.city"))
	viper.BindPFlag("providers.cascade.stop_on_error", serveCmd.PersistentFlags().Lookup("providers.cascade.stop_on_error"))

	viper.BindPFlag("cache.backend", serveCmd.PersistentFlags().Lookup("cache.backend"))
	viper.BindPFlag("cache.redis.addr", serveCmd.PersistentFlags().Lookup("cache.redis.addr"))

	// api server
	viper.SetDefault("api.binding", "0.0.0.0")
	viper.SetDefault("api.port", 3000)
	viper.SetDefault("environment", "production")

	// upstream
	viper.SetDefault("upstream.timeout", "5s")
	viper.SetDefault("upstream.user_agent", utils.DefaultUserAgent)
	viper.SetDefault("upstream.insecure_skip_verify", false)

	// rate limit
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.window", "15m")
	viper.SetDefault("rate_limit.max", 100)
	viper.SetDefault("rate_limit.clients", 10000)

	// providers
	viper.SetDefault("providers.ipify.enabled", true)
	viper.SetDefault("providers.ipify.endpoint", provider.IpifyEndpoint)
	viper.SetDefault("providers.ipinfo.enabled", true)
	viper.SetDefault("providers.ipinfo.endpoints.public_ip", provider.IPInfoPublicIPEndpoint)
	viper.SetDefault("providers.ipinfo.endpoints.country_code", provider.IPInfoCountryCodeEndpoint)
	viper.SetDefault("providers.ipinfo.endpoints.ip_details", provider.IPInfoDetailsEndpoint)
	viper.SetDefault("providers.ipapi.enabled", true)
	viper.SetDefault("providers.ipapi.endpoints.country_code", provider.IpapiCountryCodeEndpoint)
	viper.SetDefault("providers.ipapi.endpoints.ip_details", provider.IpapiDetailsEndpoint)
	viper.SetDefault("providers.restcountries.enabled", true)
	viper.SetDefault("providers.restcountries.endpoint", provider.RestCountriesEndpoint)
	viper.SetDefault("providers.ipstack.enabled", false)
	viper.SetDefault("providers.ipstack.apikey", "")
	viper.SetDefault("providers.maxmind.enabled", false)
	viper.SetDefault("providers.maxmind.db.city", "")
	viper.SetDefault("providers.cascade.stop_on_error", false)

	// cache
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "local")
	viper.SetDefault("cache.size", 4096)
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.redis.password", "")
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.prefix", "ipinfo:")
	viper.SetDefault("cache.ttl.public_ip", "60s")
	viper.SetDefault("cache.ttl.country_code", "1h")
	viper.SetDefault("cache.ttl.country_info", "24h")
	viper.SetDefault("cache.ttl.ip_details", "1h")

	// metrics
	viper.SetDefault("metrics.enabled", true)

	// refresh
	viper.SetDefault("refresh", "24h")
}

func httpOptions() provider.HTTPOptions {
	insecure := viper.GetBool("upstream.insecure_skip_verify")
	if insecure && viper.GetString("environment") == "production" {
		log.Warn().Msg("ignoring upstream.insecure_skip_verify in production")
		insecure = false
	}

	return provider.HTTPOptions{
		Client:    utils.NewHTTPClient(viper.GetDuration("upstream.timeout"), insecure),
		UserAgent: viper.GetString("upstream.user_agent"),
	}
}

// buildResolver creates every enabled provider and registers one strategy
// per query kind. The returned providers are the leaves, for refresh and
// shutdown.
func buildResolver(ctx context.Context) (*provider.FallbackResolver, []provider.IPProvider, error) {
	opts := httpOptions()

	var publicIP, countryCode, countryInfo, details []provider.IPProvider

	if viper.GetBool("providers.ipify.enabled") {
		publicIP = append(publicIP, provider.NewIpifyProvider(opts, viper.GetString("providers.ipify.endpoint")))
	}

	if viper.GetBool("providers.ipapi.enabled") {
		countryCode = append(countryCode, provider.NewIpapiCountryCodeProvider(opts, viper.GetString("providers.ipapi.endpoints.country_code")))
	}

	if viper.GetBool("providers.ipinfo.enabled") {
		publicIP = append(publicIP, provider.NewIPInfoPublicIPProvider(opts, viper.GetString("providers.ipinfo.endpoints.public_ip")))
		countryCode = append(countryCode, provider.NewIPInfoCountryCodeProvider(opts, viper.GetString("providers.ipinfo.endpoints.country_code")))
		details = append(details, provider.NewIPInfoDetailsProvider(opts, viper.GetString("providers.ipinfo.endpoints.ip_details")))
	}

	if viper.GetBool("providers.ipapi.enabled") {
		details = append(details, provider.NewIpapiDetailsProvider(opts, viper.GetString("providers.ipapi.endpoints.ip_details")))
	}

	if viper.GetBool("providers.restcountries.enabled") {
		countryInfo = append(countryInfo, provider.NewRestCountriesProvider(opts, viper.GetString("providers.restcountries.endpoint")))
	}

	if viper.GetBool("providers.ipstack.enabled") {
		ipProvider, err := provider.NewIpStackProvider(ctx, viper.GetString("providers.ipstack.apikey"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open ipstack provider: %w", err)
		}
		countryCode = append(countryCode, ipProvider)
		details = append(details, ipProvider)
	}

	if viper.GetBool("providers.maxmind.enabled") {
		ipProvider, err := provider.NewMaxMindProvider(ctx, viper.GetString("providers.maxmind.db.city"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open maxmind provider: %w", err)
		}
		countryCode = append(countryCode, ipProvider)
		details = append(details, ipProvider)
	}

	stopOnError := viper.GetBool("providers.cascade.stop_on_error")
	fr := provider.NewFallbackResolver()

	if len(publicIP) > 0 {
		race, err := provider.NewRaceIPProvider(ctx, publicIP)
		if err != nil {
			return nil, nil, err
		}
		fr.Register(provider.PublicIP, race)
	}

	for kind, providers := range map[provider.QueryKind][]provider.IPProvider{
		provider.CountryCode: countryCode,
		provider.CountryInfo: countryInfo,
		provider.IPDetails:   details,
	} {
		if len(providers) == 0 {
			log.Warn().Str("kind", string(kind)).Msg("no providers enabled")
			continue
		}

		cascade, err := provider.NewCascadeIPProvider(ctx, stopOnError, providers)
		if err != nil {
			return nil, nil, err
		}
		fr.Register(kind, cascade)
	}

	return fr, uniqueProviders(publicIP, countryCode, countryInfo, details), nil
}

func uniqueProviders(lists ...[]provider.IPProvider) []provider.IPProvider {
	seen := make(map[provider.IPProvider]bool)
	var providers []provider.IPProvider

	for _, list := range lists {
		for _, p := range list {
			if seen[p] {
				continue
			}
			seen[p] = true
			providers = append(providers, p)
		}
	}

	return providers
}

func configureCache(ctx context.Context) (cache.CacheProvider, error) {
	if !viper.GetBool("cache.enabled") {
		log.Info().Msg("cache disabled")
		return nil, nil
	}

	switch backend := viper.GetString("cache.backend"); backend {
	case "local":
		lc, err := cache.NewLocalCache(ctx, viper.GetInt("cache.size"))
		if err != nil {
			return nil, err
		}
		return lc, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, &redis.Options{
			Addr:     viper.GetString("cache.redis.addr"),
			Password: viper.GetString("cache.redis.password"),
			DB:       viper.GetInt("cache.redis.db"),
		}, viper.GetString("cache.redis.prefix"))
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %s", backend)
	}
}

func cacheTTLs() map[provider.QueryKind]time.Duration {
	return map[provider.QueryKind]time.Duration{
		provider.PublicIP:    viper.GetDuration("cache.ttl.public_ip"),
		provider.CountryCode: viper.GetDuration("cache.ttl.country_code"),
		provider.CountryInfo: viper.GetDuration("cache.ttl.country_info"),
		provider.IPDetails:   viper.GetDuration("cache.ttl.ip_details"),
	}
}

func execServe(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	fallbackResolver, providers, err := buildResolver(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure providers")
	}

	for _, ipProvider := range providers {
		if err := ipProvider.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("provider", ipProvider.Name()).Msg("failed to start provider")
		}
	}

	backend, err := configureCache(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start cache")
	}

	var gate utils.RequestGate
	if viper.GetBool("rate_limit.enabled") {
		limiter, err := utils.NewClientRateLimiter(viper.GetDuration("rate_limit.window"), viper.GetInt("rate_limit.max"), viper.GetInt("rate_limit.clients"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure the rate limit")
		}
		gate = limiter
	}

	srv := &server{
		service: resolver.NewService(fallbackResolver, resolver.NewCaches(backend, cacheTTLs())),
	}

	err = startServer(ctx, srv, gate, providers, backend)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the api server")
	}
}

func newEcho(srv *server, gate utils.RequestGate) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler
	e.Use(middleware.RequestID())
	e.Use(utils.ZeroLogger(&log.Logger))
	e.Use(middleware.Recover())
	if gate != nil {
		e.Use(utils.RateLimit(gate))
	}

	e.GET("/_ping", ping)
	e.GET("/myip", srv.myIP)
	e.GET("/mycountrycode", srv.myCountryCode)
	e.GET("/mycountry", srv.myCountry)
	e.GET("/mycountryinfo", srv.myCountry)
	e.GET("/mydetails", srv.myDetails)
	e.GET("/country/:alphaCode", srv.country)
	if viper.GetBool("metrics.enabled") {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return e
}

func startServer(ctx context.Context, srv *server, gate utils.RequestGate, providers []provider.IPProvider, backend cache.CacheProvider) error {
	e := newEcho(srv, gate)

	stopRefresh := make(chan bool)
	// refresh in intervals
	ticker := time.NewTicker(viper.GetDuration("refresh"))
	go func() {
		for {
			select {
			case <-ticker.C:
				log.Info().Msg("refreshing providers")
				for _, ipProvider := range providers {
					if err := ipProvider.Refresh(ctx); err != nil {
						log.Error().Err(err).Str("provider", ipProvider.Name()).Msg("failed to refresh provider")
					}
				}
			case <-stopRefresh:
				log.Info().Msg("stopping refresh")
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	err := runServer(e, fmt.Sprintf("%s:%d", viper.GetString("api.binding"), viper.GetInt("api.port")), quit)

	ticker.Stop()
	stopRefresh <- true

	for _, ipProvider := range providers {
		ipProvider.Shutdown(ctx)
	}

	if backend != nil {
		backend.Shutdown(ctx)
	}

	return err
}

// runServer serves until a signal arrives on quit, then shuts the server
// down. It returns early with the error when the server cannot start.
func runServer(e *echo.Echo, address string, quit <-chan os.Signal) error {
	failed := make(chan error, 1)
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return fmt.Errorf("failed to serve on %s: %w", address, err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Shutdown(shutdownCtx)
}
