package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"materials/internal/analytics"
	"materials/internal/core"
	applog "materials/internal/log"
	"materials/internal/metrics"
	"materials/internal/middleware/ratelimit"
	"materials/internal/middleware/security"
	"materials/internal/middleware/trace"
	appweb "materials/web"
)

const (
	requestTimeout  = 7 * time.Second
	readyTimeout    = 2 * time.Second
	maxFormBytes    = 1 << 20
	recentLimit     = 5
	staticMaxAgeSec = 3600
)

// RecordService is what the handlers need from the service layer.
type RecordService interface {
	CreateRecord(ctx context.Context, rec core.MaterialRecord) (core.MaterialRecord, error)
	ListRecords(ctx context.Context, f core.RecordFilter) ([]core.MaterialRecord, error)
	RecentRecords(ctx context.Context, limit int) ([]core.MaterialRecord, error)
	Overview(ctx context.Context) (core.Overview, error)
	FilterOptions(ctx context.Context) (core.FilterOptions, error)
	Dashboard(ctx context.Context, f core.RecordFilter) (analytics.Dashboard, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer. Zero values pick sensible defaults.
type Options struct {
	SecretKey string
	Metrics   *metrics.Metrics
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	// Now overrides time.Now for dates and export filenames.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	svc       RecordService
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	flash     *flashSigner
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, svc RecordService, opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		svc:       svc,
		metrics:   opts.Metrics,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(),
		flash:     newFlashSigner(opts.SecretKey),
		now:       opts.Now,
		started:   opts.Now(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticCache(staticMaxAgeSec)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	s.handle(mux, "GET /{$}", "/", s.handleIndex)
	s.handle(mux, "GET /add", "/add", s.handleAddForm)
	s.handle(mux, "POST /add", "/add", s.handleAddRecord)
	s.handle(mux, "GET /records", "/records", s.handleRecords)
	s.handle(mux, "GET /dashboard", "/dashboard", s.handleDashboard)
	s.handle(mux, "GET /export/{format}", "/export/{format}", s.handleExport)
	s.handle(mux, "GET /api/charts/{chart}", "/api/charts/{chart}", s.handleChart)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	structured := applog.NewStructuredLogger(opts.Logger.WithComponent(applog.ComponentHTTP))
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.Middleware(opts.Logger, trace.FromRequest)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, structured).Handler(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// handle registers h for pattern, counted in metrics under route.
func (s *Server) handle(mux *http.ServeMux, pattern, route string, h http.HandlerFunc) {
	mux.Handle(pattern, s.metrics.Instrument(route, h))
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	s.renderError(w, r, http.StatusTooManyRequests, "Too many submissions. Please wait a minute and try again.")
}
