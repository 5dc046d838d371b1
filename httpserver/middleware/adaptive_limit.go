/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log"
	"github.com/acronis/go-sawtooth/restapi"
)

// DefaultAdaptiveInFlightLimitWaitTimeout is a default maximum time a request may wait for admission.
const DefaultAdaptiveInFlightLimitWaitTimeout = 5 * time.Second

// AdaptiveInFlightLimitErrCode is the error code that is used in a response body
// if the request is rejected because it was not admitted in time.
const AdaptiveInFlightLimitErrCode = "tooManyInFlightRequests"

// Log fields for AdaptiveInFlightLimit middleware.
const (
	AdaptiveInFlightLimitLogFieldKey = "in_flight_limit_key"
	userAgentLogFieldKey             = "user_agent"
)

// AdaptiveInFlightLimitParams contains data that relates to the limiting procedure
// and could be used for rejecting or handling an occurred error.
type AdaptiveInFlightLimitParams struct {
	ResponseStatusCode int
	GetRetryAfter      AdaptiveInFlightLimitGetRetryAfterFunc
	ErrDomain          string
	Key                string
	Stats              limiter.Stats
}

// AdaptiveInFlightLimitGetRetryAfterFunc is a function that is called to get a value for Retry-After response HTTP header
// when the request is rejected.
type AdaptiveInFlightLimitGetRetryAfterFunc func(r *http.Request) time.Duration

// AdaptiveInFlightLimitOnRejectFunc is a function that is called for rejecting HTTP request
// when it was not admitted during the wait timeout.
type AdaptiveInFlightLimitOnRejectFunc func(rw http.ResponseWriter, r *http.Request,
	params AdaptiveInFlightLimitParams, next http.Handler, logger log.FieldLogger)

// AdaptiveInFlightLimitOnErrorFunc is a function that is called in case of any error that may occur during the limiting
// (e.g., the key cannot be determined or the client went away while waiting).
type AdaptiveInFlightLimitOnErrorFunc func(rw http.ResponseWriter, r *http.Request,
	params AdaptiveInFlightLimitParams, err error, next http.Handler, logger log.FieldLogger)

// AdaptiveInFlightLimitGetKeyFunc is a function that is called for getting key for limiting.
// Every key gets its own adaptive limiter.
type AdaptiveInFlightLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// AdaptiveInFlightLimitIsBackpressureFunc reports whether the response status code means the handler was overloaded.
type AdaptiveInFlightLimitIsBackpressureFunc func(statusCode int) bool

// AdaptiveInFlightLimitOpts represents an options for the middleware that adaptively limits in-flight HTTP requests.
type AdaptiveInFlightLimitOpts struct {
	// Name is used as a prefix for per-key limiter names in logs and metrics.
	Name string

	GetKey             AdaptiveInFlightLimitGetKeyFunc
	MaxKeys            int
	ResponseStatusCode int
	GetRetryAfter      AdaptiveInFlightLimitGetRetryAfterFunc

	// WaitTimeout is a maximum time a request may wait for admission. If zero, 5 seconds is used.
	WaitTimeout time.Duration

	// IsBackpressure is used for detecting overload by the response status code.
	// By default, 429 and 503 mean backpressure.
	IsBackpressure AdaptiveInFlightLimitIsBackpressureFunc

	OnReject AdaptiveInFlightLimitOnRejectFunc
	OnError  AdaptiveInFlightLimitOnErrorFunc

	// Logger is used by limiters for logging limit adjustments.
	Logger           log.FieldLogger
	MetricsCollector *limiter.MetricsCollector
}

type adaptiveInFlightLimitHandler struct {
	limiters       *limiter.Keyed[http.Handler]
	next           http.Handler
	getKey         AdaptiveInFlightLimitGetKeyFunc
	errDomain      string
	respStatusCode int
	getRetryAfter  AdaptiveInFlightLimitGetRetryAfterFunc
	waitTimeout    time.Duration
	isBackpressure AdaptiveInFlightLimitIsBackpressureFunc
	onReject       AdaptiveInFlightLimitOnRejectFunc
	onError        AdaptiveInFlightLimitOnErrorFunc
}

// AdaptiveInFlightLimit is a middleware that limits the number of currently served (in-flight) HTTP requests
// with an adaptive concurrency limiter. The limit grows while the next handler responds successfully
// and shrinks when it responds with 429 or 503. Requests above the limit wait in FIFO order
// and are rejected with 503 if they are not admitted in time.
func AdaptiveInFlightLimit(cfg limiter.Config, errDomain string) (func(next http.Handler) http.Handler, error) {
	return AdaptiveInFlightLimitWithOpts(cfg, errDomain, AdaptiveInFlightLimitOpts{})
}

// MustAdaptiveInFlightLimit is a version of AdaptiveInFlightLimit that panics on error.
func MustAdaptiveInFlightLimit(cfg limiter.Config, errDomain string) func(next http.Handler) http.Handler {
	mw, err := AdaptiveInFlightLimit(cfg, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// AdaptiveInFlightLimitWithOpts is a configurable version of AdaptiveInFlightLimit.
func AdaptiveInFlightLimitWithOpts(
	cfg limiter.Config, errDomain string, opts AdaptiveInFlightLimitOpts,
) (func(next http.Handler) http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate limiter config: %w", err)
	}
	if opts.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", opts.MaxKeys)
	}
	if opts.WaitTimeout < 0 {
		return nil, fmt.Errorf("wait timeout should not be negative, got %s", opts.WaitTimeout)
	}

	maxKeys := 1
	if opts.GetKey != nil {
		maxKeys = opts.MaxKeys
		if maxKeys == 0 {
			maxKeys = limiter.DefaultMaxKeys
		}
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout == 0 {
		waitTimeout = DefaultAdaptiveInFlightLimitWaitTimeout
	}
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusServiceUnavailable
	}
	isBackpressure := opts.IsBackpressure
	if isBackpressure == nil {
		isBackpressure = DefaultAdaptiveInFlightLimitIsBackpressure
	}
	onReject := opts.OnReject
	if onReject == nil {
		onReject = DefaultAdaptiveInFlightLimitOnReject
	}
	onError := opts.OnError
	if onError == nil {
		onError = DefaultAdaptiveInFlightLimitOnError
	}
	keyedOpts := limiter.KeyedOpts{
		MaxKeys: maxKeys,
		Opts:    limiter.Opts{Name: opts.Name, Logger: opts.Logger, MetricsCollector: opts.MetricsCollector},
	}

	return func(next http.Handler) http.Handler {
		limiters, err := limiter.NewKeyed(next, cfg, keyedOpts)
		if err != nil {
			panic(err) // Config and max keys are validated above.
		}
		return &adaptiveInFlightLimitHandler{
			limiters:       limiters,
			next:           next,
			getKey:         opts.GetKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			getRetryAfter:  opts.GetRetryAfter,
			waitTimeout:    waitTimeout,
			isBackpressure: isBackpressure,
			onReject:       onReject,
			onError:        onError,
		}
	}, nil
}

// MustAdaptiveInFlightLimitWithOpts is a version of AdaptiveInFlightLimitWithOpts that panics on error.
func MustAdaptiveInFlightLimitWithOpts(
	cfg limiter.Config, errDomain string, opts AdaptiveInFlightLimitOpts,
) func(next http.Handler) http.Handler {
	mw, err := AdaptiveInFlightLimitWithOpts(cfg, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *adaptiveInFlightLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromContext(r.Context())
	params := AdaptiveInFlightLimitParams{
		ResponseStatusCode: h.respStatusCode,
		GetRetryAfter:      h.getRetryAfter,
		ErrDomain:          h.errDomain,
	}

	if h.getKey != nil {
		key, bypass, err := h.getKey(r)
		if err != nil {
			h.onError(rw, r, params, fmt.Errorf("get key for adaptive in-flight limit: %w", err), h.next, logger)
			return
		}
		if bypass {
			h.next.ServeHTTP(rw, r)
			return
		}
		params.Key = key
	}

	lim := h.limiters.Get(params.Key)
	waitCtx, waitCancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer waitCancel()

	opID := xid.New().String()
	err := lim.DoWithID(waitCtx, opID, func(_ context.Context, next http.Handler) error {
		wrw := WrapResponseWriterIfNeeded(rw, r.ProtoMajor)
		next.ServeHTTP(wrw, r.WithContext(NewContextWithOperationID(r.Context(), opID)))
		if h.isBackpressure(responseStatus(wrw)) {
			return limiter.ErrBackpressure
		}
		return nil
	})
	if err == nil {
		return
	}

	params.Stats = lim.Stats()
	if r.Context().Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		h.onReject(rw, r, params, h.next, logger)
		return
	}
	h.onError(rw, r, params, fmt.Errorf("wait for admission: %w", err), h.next, logger)
}

// DefaultAdaptiveInFlightLimitIsBackpressure treats 429 (Too Many Requests) and 503 (Service Unavailable) as backpressure.
func DefaultAdaptiveInFlightLimitIsBackpressure(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

// DefaultAdaptiveInFlightLimitOnReject sends HTTP response in a typical way when the request was not admitted in time.
func DefaultAdaptiveInFlightLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params AdaptiveInFlightLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(AdaptiveInFlightLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
			log.Float64(limiter.LogFieldConcurrency, params.Stats.Concurrency),
			log.Int(limiter.LogFieldInFlight, params.Stats.InFlight),
		)
	}
	if params.GetRetryAfter != nil {
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(params.GetRetryAfter(r).Seconds()))))
	}
	apiErr := restapi.NewError(params.ErrDomain, AdaptiveInFlightLimitErrCode, "Too many in-flight requests.")
	restapi.RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// DefaultAdaptiveInFlightLimitOnError sends HTTP response in a typical way in case
// when the error occurs during the limiting.
// Nothing is written if the client has gone away while its request was waiting for admission.
func DefaultAdaptiveInFlightLimitOnError(
	rw http.ResponseWriter, r *http.Request, params AdaptiveInFlightLimitParams, err error, next http.Handler, logger log.FieldLogger,
) {
	if errors.Is(err, context.Canceled) {
		if logger != nil {
			logger.Warn("request canceled while waiting for admission",
				log.String(AdaptiveInFlightLimitLogFieldKey, params.Key), log.Error(err))
		}
		return
	}
	if logger != nil {
		logger.Error(err.Error(), log.String(AdaptiveInFlightLimitLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}
