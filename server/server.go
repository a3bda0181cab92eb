package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/genewire/genewire/pkg/digest"
	"github.com/genewire/genewire/pkg/repository"
)

// Server is the REST API over the digest pipeline and feedback store
type Server struct {
	config     ConfigProvider
	searcher   Searcher
	digests    DigestService
	engine     ComparisonEngine
	feedback   FeedbackStore
	summaries  SummaryStore
	recipients RecipientStore
	sites      SiteStore
	settings   SettingStore
	version    string
	debug      bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Searcher runs an on-demand article search
type Searcher interface {
	Search(ctx context.Context) ([]repository.Article, error)
}

// DigestService runs the digest pipeline on demand
type DigestService interface {
	Run(ctx context.Context, force bool) (*repository.DailySummary, error)
}

// ComparisonEngine drives A/B comparison sessions
type ComparisonEngine interface {
	CreateSession(ctx context.Context, recipientID string, summaryID int64) (*digest.Session, error)
	GetComparisonData(ctx context.Context, sessionID string, order int) (*digest.ComparisonData, error)
	RecordPreference(ctx context.Context, sessionID string, order int, preference string) (*digest.PreferenceResult, error)
	GetSessionSummary(ctx context.Context, sessionID string) (*digest.SessionSummary, error)
}

// FeedbackStore records thumbs up/down votes
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, event *repository.FeedbackEvent) error
	CountFeedback(ctx context.Context, feedbackType string, targetID int64) (up, down int, err error)
}

// SummaryStore reads stored digests
type SummaryStore interface {
	GetDailySummary(ctx context.Context, id int64) (*repository.DailySummary, error)
	ListDailySummaries(ctx context.Context, limit int) ([]repository.DailySummary, error)
}

// RecipientStore manages subscribers
type RecipientStore interface {
	CreateRecipient(ctx context.Context, recipient *repository.Recipient) error
	GetRecipients(ctx context.Context, activeOnly bool) ([]repository.Recipient, error)
	UpdateRecipient(ctx context.Context, recipient *repository.Recipient) error
	DeleteRecipient(ctx context.Context, id int64) error
}

// SiteStore manages search sites
type SiteStore interface {
	CreateSite(ctx context.Context, site *repository.Site) error
	GetSites(ctx context.Context, activeOnly bool) ([]repository.Site, error)
	UpdateSite(ctx context.Context, site *repository.Site) error
	DeleteSite(ctx context.Context, id int64) error
}

// SettingStore manages runtime settings
type SettingStore interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Deps bundles the server's collaborators
type Deps struct {
	Config     ConfigProvider
	Searcher   Searcher
	Digests    DigestService
	Engine     ComparisonEngine
	Feedback   FeedbackStore
	Summaries  SummaryStore
	Recipients RecipientStore
	Sites      SiteStore
	Settings   SettingStore
}

// New initializes a new server instance
func New(deps Deps, version string, debug bool) *Server {
	s := &Server{
		config:     deps.Config,
		searcher:   deps.Searcher,
		digests:    deps.Digests,
		engine:     deps.Engine,
		feedback:   deps.Feedback,
		summaries:  deps.Summaries,
		recipients: deps.Recipients,
		sites:      deps.Sites,
		settings:   deps.Settings,
		version:    version,
		debug:      debug,
		router:     routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("genewire", "genewire", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /search", s.searchHandler)
		r.HandleFunc("POST /digest", s.digestHandler)

		r.HandleFunc("GET /summaries", s.listSummariesHandler)
		r.HandleFunc("GET /summaries/{id}", s.getSummaryHandler)
		r.HandleFunc("GET /summaries/{id}/feedback", s.summaryFeedbackCountsHandler)

		r.HandleFunc("POST /feedback", s.feedbackHandler)

		r.HandleFunc("POST /comparisons", s.createComparisonSessionHandler)
		r.HandleFunc("GET /comparisons/{session}/summary", s.sessionSummaryHandler)
		r.HandleFunc("GET /comparisons/{session}/{order}", s.getComparisonHandler)
		r.HandleFunc("POST /comparisons/{session}/{order}", s.recordPreferenceHandler)

		r.HandleFunc("POST /recipients", s.createRecipientHandler)
		r.HandleFunc("GET /recipients", s.listRecipientsHandler)
		r.HandleFunc("PUT /recipients/{id}", s.updateRecipientHandler)
		r.HandleFunc("DELETE /recipients/{id}", s.deleteRecipientHandler)

		r.HandleFunc("POST /sites", s.createSiteHandler)
		r.HandleFunc("GET /sites", s.listSitesHandler)
		r.HandleFunc("PUT /sites/{id}", s.updateSiteHandler)
		r.HandleFunc("DELETE /sites/{id}", s.deleteSiteHandler)

		r.HandleFunc("GET /settings", s.listSettingsHandler)
		r.HandleFunc("PUT /settings", s.updateSettingsHandler)
	})
}
