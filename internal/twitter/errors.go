package twitter

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/adamsosx/tweetx/internal/retry"
)

// APIError is a non-2xx response from the platform. ResetAt carries the
// x-rate-limit-reset header when the platform sent one.
type APIError struct {
	Status  int
	Body    string
	ResetAt time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Classify buckets a failed platform call for the retry loop: 429 waits for
// the advertised reset, 5xx and network errors back off, any other 4xx is
// a caller mistake and must not be retried.
func Classify(err error) retry.Verdict {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return retry.Verdict{Class: retry.RateLimited, ResetAt: apiErr.ResetAt}
		case apiErr.Status >= 500:
			return retry.Verdict{Class: retry.Transient}
		case apiErr.Status >= 400:
			return retry.Verdict{Class: retry.Client}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Verdict{Class: retry.Transient}
	}
	return retry.Verdict{}
}

func resetTime(h http.Header) time.Time {
	v := h.Get("x-rate-limit-reset")
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
