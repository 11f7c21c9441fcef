package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"otterdog/pkg/cache"
	"otterdog/pkg/config"
	"otterdog/pkg/credentials"
	"otterdog/pkg/jsonnet"
	"otterdog/pkg/providers/github"
)

// orgContext bundles the per-organization state the daemon keeps: the
// resolved API client and an evaluator rooted at its configuration
// directory.
type orgContext struct {
	org       *config.OrganizationConfig
	provider  *github.Client
	evaluator *jsonnet.Evaluator
}

// Server is the webhook daemon: an HTTP server receiving GitHub events
// plus the task machinery processing them.
type Server struct {
	cfg       *config.Config
	queue     *TaskQueue
	journal   *Journal
	events    *EventPublisher
	store     cache.Store
	scheduler gocron.Scheduler
	logger    zerolog.Logger
	secret    []byte
	orgs      map[string]*orgContext
}

// New builds the daemon from the root configuration. Credentials are
// resolved up front for every organization; organizations without a usable
// API token are skipped with a warning.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	webCfg := cfg.Defaults.WebApp

	secret := webCfg.WebhookSecret
	if secret == "" {
		secret = os.Getenv("OTTERDOG_WEBHOOK_SECRET")
	}
	if secret == "" {
		logger.Warn().Msg("no webhook secret configured, accepting unvalidated deliveries")
	}

	store, err := cache.New(cache.Options{
		Backend:   cfg.Defaults.Cache.Backend,
		Dir:       cfg.CacheDir(),
		RedisAddr: cfg.Defaults.Cache.RedisAddr,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up API cache: %w", err)
	}

	resolver := credentials.NewResolver()
	if aws, err := credentials.NewAWSProvider(ctx); err == nil {
		resolver.Register(aws)
	} else {
		logger.Debug().Err(err).Msg("aws credential provider not available")
	}

	orgs := make(map[string]*orgContext)
	for i := range cfg.Organizations {
		org := &cfg.Organizations[i]

		creds, err := resolver.Resolve(ctx, org.Credentials)
		if err != nil {
			logger.Warn().Err(err).Str("org", org.GitHubID).Msg("failed to resolve credentials, organization not served")
			continue
		}
		if creds.GitHubToken == "" {
			logger.Warn().Str("org", org.GitHubID).Msg("no API token configured, organization not served")
			continue
		}

		provider, err := github.NewClient(creds.GitHubToken, github.Options{
			BaseURL: cfg.Defaults.GitHub.BaseURL,
			Cache:   store,
			Logger:  logger,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}

		configDir := filepath.Dir(cfg.OrgConfigPath(org.GitHubID))
		orgs[strings.ToLower(org.GitHubID)] = &orgContext{
			org:       org,
			provider:  provider,
			evaluator: jsonnet.NewEvaluator(configDir, cfg.TemplateDir()),
		}
	}
	if len(orgs) == 0 {
		_ = store.Close()
		return nil, errors.New("no organization with usable credentials configured")
	}

	journal, err := NewJournal(cfg.JournalPath())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	queue := NewTaskQueue(webCfg.QueueSize, webCfg.Workers, logger)
	queue.SetJournal(journal)

	var events *EventPublisher
	if webCfg.NATSURL != "" {
		events, err = NewEventPublisher(webCfg.NATSURL, logger)
		if err != nil {
			_ = journal.Close()
			_ = store.Close()
			return nil, err
		}
		queue.SetEventPublisher(events)
	}

	return &Server{
		cfg:     cfg,
		queue:   queue,
		journal: journal,
		events:  events,
		store:   store,
		logger:  logger,
		secret:  []byte(secret),
		orgs:    orgs,
	}, nil
}

// Run starts the daemon and blocks until ctx is canceled or the listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	s.queue.Start(ctx)
	if err := s.startScheduler(); err != nil {
		s.shutdown()
		return err
	}
	s.enqueueRequiredFileTasks()

	srv := &http.Server{
		Addr:              s.cfg.Defaults.WebApp.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Int("orgs", len(s.orgs)).Msg("webhook daemon listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http shutdown failed")
	}
	s.shutdown()
	return nil
}

func (s *Server) shutdown() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
	s.queue.Stop()
	if s.events != nil {
		s.events.Close()
	}
	_ = s.journal.Close()
	_ = s.store.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(120, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited)))
		r.Get("/api/v1/tasks", s.handleTasks)
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(300, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited)))
		r.Post("/github-webhook/receive", s.handleWebhook)
	})

	return r
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.recentTasks(r.Context(), 50)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tasks); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode task listing")
	}
}

// recentTasks merges the live queue view with journaled runs from previous
// processes.
func (s *Server) recentTasks(ctx context.Context, limit int) []*Task {
	tasks := s.queue.Recent(limit)
	if len(tasks) >= limit {
		return tasks
	}

	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		seen[task.ID] = true
	}

	recorded, err := s.journal.Recent(ctx, limit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read task journal")
		return tasks
	}
	for _, task := range recorded {
		if !seen[task.ID] {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}

// orgFor returns the context of a managed organization, nil when the login
// is not configured.
func (s *Server) orgFor(login string) *orgContext {
	if login == "" {
		return nil
	}
	return s.orgs[strings.ToLower(login)]
}

// remoteConfigPath is the location of an organization's configuration
// inside its config repository.
func remoteConfigPath(githubID string) string {
	return fmt.Sprintf("otterdog/%s.jsonnet", githubID)
}
