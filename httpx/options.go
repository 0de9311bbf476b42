package httpx

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HTTPErrorHandler aliases echo.HTTPErrorHandler.
type HTTPErrorHandler = echo.HTTPErrorHandler

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Middlewares  []MiddlewareFunc
	ErrorHandler HTTPErrorHandler
	CORS         *middleware.CORSConfig
	Logger       *slog.Logger
	IPExtractor  echo.IPExtractor
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Middlewares:  []MiddlewareFunc{RecoverMiddleware()},
		ErrorHandler: defaultHTTPErrorHandler,
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

// WithLogger sets the logger used for server lifecycle events.
func WithLogger(log *slog.Logger) ServerOption {
	return func(o *ServerOptions) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithIPExtractor sets how the client address is derived, e.g. when the
// server sits behind a proxy.
func WithIPExtractor(fn echo.IPExtractor) ServerOption {
	return func(o *ServerOptions) {
		if fn != nil {
			o.IPExtractor = fn
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// AppendMiddlewares appends additional middleware to the existing stack.
func AppendMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) {
		if len(mw) > 0 {
			o.Middlewares = append(o.Middlewares, mw...)
		}
	}
}

// WithCORS enables CORS middleware using the provided configuration; if cfg is nil, the default config is used.
func WithCORS(cfg *middleware.CORSConfig) ServerOption {
	return func(o *ServerOptions) {
		if cfg == nil {
			def := middleware.DefaultCORSConfig
			o.CORS = &def
			return
		}
		o.CORS = cfg
	}
}

// ClientOptions configures Client. Retries apply to transport errors,
// 429 and 5xx responses only.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Headers    map[string]string
	UserAgent  string
	Retries    int
	RetryWait  time.Duration
	RetryLimit time.Duration
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:    10 * time.Second,
		Headers:    map[string]string{"Content-Type": "application/json"},
		UserAgent:  "scribe",
		RetryWait:  200 * time.Millisecond,
		RetryLimit: 2 * time.Second,
	}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if len(headers) == 0 {
			return
		}
		o.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithUserAgent overrides the User-Agent sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		if ua != "" {
			o.UserAgent = ua
		}
	}
}

// WithRetry retries failed requests up to n more times, backing off from
// wait up to limit.
func WithRetry(n int, wait, limit time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if n < 0 {
			n = 0
		}
		o.Retries = n
		if wait > 0 {
			o.RetryWait = wait
		}
		if limit > 0 {
			o.RetryLimit = limit
		}
	}
}
