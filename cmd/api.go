package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloud66-oss/ipinfo/resolver"
	"github.com/cloud66-oss/ipinfo/utils"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo"
	"github.com/rs/zerolog/log"
)

const (
	internalServerErrorMessage = "Internal Server Error"
	countryNotFoundMessage     = "Country info not found"
)

type resolutionService interface {
	ResolveClientIP(ctx context.Context, meta resolver.RequestMetadata) string
	ResolveCountryCode(ctx context.Context, address string) string
	ResolveCountryInfo(ctx context.Context, code string) (*utils.CountryInfo, error)
	ResolveDetails(ctx context.Context, address string) *resolver.Details
	ResolveWithCountry(ctx context.Context, meta resolver.RequestMetadata) *resolver.Resolution
}

var _ resolutionService = &resolver.Service{}

type server struct {
	service resolutionService
}

func ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (s *server) clientIP(c echo.Context) string {
	return s.service.ResolveClientIP(c.Request().Context(), resolver.MetadataFromRequest(c.Request()))
}

func (s *server) myIP(c echo.Context) error {
	return c.String(http.StatusOK, s.clientIP(c))
}

func (s *server) myCountryCode(c echo.Context) error {
	code := s.service.ResolveCountryCode(c.Request().Context(), s.clientIP(c))
	return c.String(http.StatusOK, code)
}

func (s *server) myCountry(c echo.Context) error {
	ctx := c.Request().Context()

	code := s.service.ResolveCountryCode(ctx, s.clientIP(c))
	if code == "" {
		return c.JSON(http.StatusOK, nil)
	}

	info, err := s.service.ResolveCountryInfo(ctx, code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, info)
}

// myDetails answers with the location of the caller, or with its country
// when called with format=country.
func (s *server) myDetails(c echo.Context) error {
	ctx := c.Request().Context()

	if c.QueryParam("format") == "country" {
		meta := resolver.MetadataFromRequest(c.Request())
		return c.JSON(http.StatusOK, s.service.ResolveWithCountry(ctx, meta))
	}

	return c.JSON(http.StatusOK, s.service.ResolveDetails(ctx, s.clientIP(c)))
}

func (s *server) country(c echo.Context) error {
	code := c.Param("alphaCode")
	log.Debug().Str("code", code).Msg("fetching country")

	info, err := s.service.ResolveCountryInfo(c.Request().Context(), code)
	if err != nil {
		var codeErr *utils.CountryCodeError
		if errors.As(err, &codeErr) {
			return c.JSON(http.StatusBadRequest, utils.ErrorResponse{
				Error: codeErr.Error(),
			})
		}
		return err
	}

	if info == nil {
		return c.JSON(http.StatusNotFound, utils.ErrorResponse{
			Error: countryNotFoundMessage,
		})
	}

	return c.JSON(http.StatusOK, info)
}

func httpErrorHandler(err error, c echo.Context) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code < http.StatusInternalServerError {
		if !c.Response().Committed {
			c.JSON(httpErr.Code, utils.ErrorResponse{Error: fmt.Sprint(httpErr.Message)}) // nolint: errcheck
		}
		return
	}

	req := c.Request()
	log.Error().Err(err).Str("method", req.Method).Str("uri", req.RequestURI).Msg("unhandled error")
	sentry.CaptureException(err)

	if c.Response().Committed {
		return
	}

	if err := c.JSON(http.StatusInternalServerError, utils.ErrorResponse{Error: internalServerErrorMessage}); err != nil {
		log.Error().Err(err).Msg("failed to write the error response")
	}
}
