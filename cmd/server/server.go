package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/helsa/backend/internal/admin"
	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
	"github.com/ayush/helsa/backend/internal/config"
	"github.com/ayush/helsa/backend/internal/diagnose"
	"github.com/ayush/helsa/backend/internal/logging"
	"github.com/ayush/helsa/backend/internal/middleware"
	"github.com/ayush/helsa/backend/internal/search"
	"github.com/ayush/helsa/backend/internal/store"
)

func runServer(cfg *config.Config) error {
	log := logging.New(cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pgPool.Close()
	if err := store.Migrate(ctx, pgPool); err != nil {
		return err
	}
	pgStore := store.NewPostgresStore(pgPool)

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("mongo indexes")
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer rdb.Close()
	revocations := auth.NewRevocationStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		return err
	}

	// ── OpenAI client ────────────────────────────────────────
	aiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		aiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	aiCfg.HTTPClient = &http.Client{Timeout: cfg.OpenAITimeout}
	requester := diagnose.NewRequester(openai.NewClientWithConfig(aiCfg), cfg.OpenAIModel)

	// ── Services ─────────────────────────────────────────────
	authSvc, err := auth.NewService(pgStore, revocations, auth.Options{
		Secret: []byte(cfg.SecretKey),
		TTL:    cfg.AccessTokenTTL(),
	}, log)
	if err != nil {
		return err
	}
	recorder := search.NewRecorder(pgStore, minioStore, log)
	diagnoseSvc := diagnose.NewService(requester, recorder, mongoStore, cfg.OpenAIModel, log)
	adminSvc := admin.NewService(pgStore, mongoStore, log)

	// ── Router ───────────────────────────────────────────────
	r := newRouter(routerDeps{
		log:         log,
		corsOrigins: cfg.CORSOrigins,
		auth:        authSvc,
		diagnose:    diagnoseSvc,
		search:      recorder,
		admin:       adminSvc,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      cfg.OpenAITimeout + time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

type routerDeps struct {
	log         zerolog.Logger
	corsOrigins []string
	auth        *auth.Service
	diagnose    *diagnose.Service
	search      *search.Recorder
	admin       *admin.Service
}

func newRouter(d routerDeps) http.Handler {
	authHandler := auth.NewHandler(d.auth, d.log)
	diagnoseHandler := diagnose.NewHandler(d.diagnose, d.log)
	searchHandler := search.NewHandler(d.search, d.log)
	adminHandler := admin.NewHandler(d.admin, d.log)
	requireAuth := middleware.RequireAuth(d.auth, d.log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.log))
	r.Use(middleware.Recovery(d.log))
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Access routes
	r.Route("/access", func(r chi.Router) {
		r.Post("/register-user", authHandler.Register)
		r.Post("/get-access-token", authHandler.GetAccessToken)
		r.With(requireAuth).Post("/revoke-token", authHandler.RevokeToken)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	// Consultation routes (protected)
	r.With(requireAuth).Post("/diagnose", diagnoseHandler.Diagnose)
	r.Route("/searches", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", searchHandler.List)
		r.Get("/{id}", searchHandler.Get)
		r.Get("/{id}/images/{imageID}", searchHandler.Image)
	})

	// Admin routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireAdmin(d.log))
		r.Post("/set-user-flags", adminHandler.SetUserFlags)
		r.Get("/users/{username}/exchanges", adminHandler.ListExchanges)
	})

	return r
}
