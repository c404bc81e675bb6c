package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/holden-dev/photolibbackend/config"
	"github.com/holden-dev/photolibbackend/database"
	"github.com/holden-dev/photolibbackend/handlers"
	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/repository"
	"github.com/holden-dev/photolibbackend/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get sql.DB handle: %v", err)
	}

	store, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeOriginal:      filepath.Base(cfg.OriginalsPath),
		media.AssetTypeThumbnail:     filepath.Base(cfg.ThumbnailsPath),
		media.AssetTypeTinyThumbnail: filepath.Base(cfg.TinyThumbnailsPath),
		media.AssetTypePreview:       filepath.Base(cfg.PreviewsPath),
		media.AssetTypeStaging:       filepath.Base(cfg.ImportsPath),
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media storage: %v", err)
	}
	for _, assetType := range []media.AssetType{
		media.AssetTypeOriginal, media.AssetTypeThumbnail,
		media.AssetTypeTinyThumbnail, media.AssetTypePreview, media.AssetTypeStaging,
	} {
		if _, err := store.EnsureDir(assetType); err != nil {
			log.Fatalf("FATAL: Failed to create %s directory: %v", assetType, err)
		}
	}

	mediaRepo := repository.NewMediaRepository(db)
	tagRepo := repository.NewTagRepository(db)

	if err := os.MkdirAll(cfg.FrameCachePath, 0755); err != nil {
		log.Fatalf("FATAL: Failed to create frame cache directory: %v", err)
	}

	extractor := media.NewExifExtractor()
	renderer := media.NewImagingRenderer(cfg.FrameCachePath, cfg.VideoFrameQuality)

	var geocoder media.Geocoder
	if cfg.ReverseGeocoding.Enabled {
		geocoder = media.NewNominatimGeocoder(
			cfg.ReverseGeocoding.BaseURL,
			cfg.ReverseGeocoding.UserAgent,
			time.Duration(cfg.ReverseGeocoding.TimeoutSeconds)*time.Second,
			time.Duration(cfg.ReverseGeocoding.RateLimitSeconds*float64(time.Second)),
		)
		log.Printf("Reverse geocoding enabled via %s", cfg.ReverseGeocoding.BaseURL)
	}

	jobs := workers.NewJobManager(cfg, store, mediaRepo, tagRepo, extractor, renderer, geocoder)

	if cfg.RegenerationSchedule != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.RegenerationSchedule, func() {
			if err := jobs.StartRegeneration(true); err != nil {
				if errors.Is(err, workers.ErrAlreadyRunning) {
					log.Println("Scheduled regeneration skipped: another job is running")
					return
				}
				log.Printf("Scheduled regeneration failed to start: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("FATAL: Invalid regeneration schedule %q: %v", cfg.RegenerationSchedule, err)
		}
		scheduler.Start()
		log.Printf("Scheduled missing-only regeneration: %s", cfg.RegenerationSchedule)
	}

	importHandler := handlers.NewImportHandler(jobs)
	mediaHandler := handlers.NewMediaHandler(sqlDB)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/media", mediaHandler.Timeline)

		r.Get("/thumbnails/*", handlers.AssetServer(store, media.AssetTypeThumbnail))
		r.Get("/thumbnails_tiny/*", handlers.AssetServer(store, media.AssetTypeTinyThumbnail))
		r.Get("/previews/*", handlers.AssetServer(store, media.AssetTypePreview))
		r.Get("/originals/*", handlers.AssetServer(store, media.AssetTypeOriginal))

		r.Route("/admin/import", func(r chi.Router) {
			r.Post("/local", importHandler.StartLocalImport)
			r.Post("/webdav", importHandler.StartWebDAVImport)
			r.Get("/status", importHandler.ImportStatus)
			r.Post("/regenerate", importHandler.StartRegeneration)
			r.Get("/regenerate/status", importHandler.RegenerationStatus)
			r.Post("/regenerate/cancel", importHandler.CancelRegeneration)
			r.Post("/reset", importHandler.StartReset)
		})
	})

	listenAddr := ":8080"
	server := &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("FATAL: Server failed: %v", err)
	}
}
