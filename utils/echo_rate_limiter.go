package utils

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/labstack/echo"
	"golang.org/x/time/rate"
)

const TooManyRequestsMessage = "Too many requests, please try again later."

// RequestGate decides whether a request from the given client may proceed.
type RequestGate interface {
	Allow(key string) bool
}

// ClientRateLimiter allows max requests per window for each client, with
// the budget refilling evenly over the window. Only the most recently seen
// clients are tracked.
type ClientRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients *lru.Cache
}

func NewClientRateLimiter(window time.Duration, max int, clients int) (*ClientRateLimiter, error) {
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	if max <= 0 {
		return nil, fmt.Errorf("rate limit max must be positive, got %d", max)
	}

	cache, err := lru.New(clients)
	if err != nil {
		return nil, err
	}

	return &ClientRateLimiter{
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		clients: cache,
	}, nil
}

func (l *ClientRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	value, ok := l.clients.Get(key)
	if !ok {
		value = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(key, value)
	}
	l.mu.Unlock()

	return value.(*rate.Limiter).Allow()
}

// RateLimit rejects requests the gate does not allow with a 429. Clients
// are told apart by the connecting address only, proxy headers are free
// for the client to forge.
func RateLimit(gate RequestGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !gate.Allow(StripPort(c.Request().RemoteAddr)) {
				return c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error: TooManyRequestsMessage,
				})
			}

			return next(c)
		}
	}
}
