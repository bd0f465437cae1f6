// @title           KMTI Data Management API
// @version         1.0
// @description     File management backend for .icd engineering data: authentication, uploads, search and audit trail.
// @host            localhost:8080
// @schemes         http https
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/imrysn/kmti-data-management/internal/api"
	"github.com/imrysn/kmti-data-management/internal/config"
	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/imrysn/kmti-data-management/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v", err)
	}
	defer logger.Sync()

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		logger.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		logger.Fatal("Cannot ping database", zap.Error(err))
	}
	logger.Info("Connected to database")

	localStorage, err := storage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Cannot initialize local storage", zap.Error(err))
	}
	logger.Info("File storage ready", zap.String("path", cfg.Storage.Path))

	store := database.NewStore(dbpool)
	server := api.NewServer(cfg, store, localStorage, logger)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(logger))
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", server.LoginHandler)
			r.Post("/register", server.RegisterHandler)
			r.Post("/refresh", server.RefreshTokenHandler)

			r.Group(func(r chi.Router) {
				r.Use(server.RequireAuth)
				r.Post("/logout", server.LogoutHandler)
				r.Get("/me", server.MeHandler)
				r.Get("/sessions", server.ListSessionsHandler)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(server.RequireAuth)
			r.Get("/", server.ListFilesHandler)
			r.Post("/upload", server.UploadFileHandler)
			r.Get("/{id}", server.GetFileHandler)
			r.Get("/{id}/download", server.DownloadFileHandler)
			r.Put("/{id}", server.UpdateFileHandler)
			r.Delete("/{id}", server.DeleteFileHandler)
			r.With(server.RequireAdmin).Post("/bulk-delete", server.BulkDeleteFilesHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(server.RequireAuth)
			r.Use(server.RequireAdmin)
			r.Get("/", server.ListUsersHandler)
			r.Get("/{id}", server.GetUserHandler)
			r.Put("/{id}", server.UpdateUserHandler)
			r.Delete("/{id}", server.DeleteUserHandler)
			r.Post("/{id}/reset-password", server.ResetPasswordHandler)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Use(server.RequireAuth)
			r.Use(server.RequireAdmin)
			r.Get("/", server.ListActivityHandler)
			r.Get("/stats", server.ActivityStatsHandler)
		})
	})

	// The raw upload dir is exposed as-is; access control lives only on the
	// API download route.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.Storage.Path))))

	if distDir := "./web/dist"; dirExists(distDir) {
		serveSPA(r, distDir)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Route not found"}`))
	})

	logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// serveSPA serves static assets from dir and falls back to index.html for
// client-side routes.
func serveSPA(r chi.Router, dir string) {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		candidate := filepath.Join(dir, filepath.Clean(req.URL.Path))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, req)
			return
		}
		http.ServeFile(w, req, index)
	})
}
