package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/tool-forge/internal/config"
	"github.com/yourusername/tool-forge/internal/imaging"
	"github.com/yourusername/tool-forge/internal/metrics"
	"github.com/yourusername/tool-forge/internal/pdf"
	"github.com/yourusername/tool-forge/internal/progress"
	"github.com/yourusername/tool-forge/internal/storage"
	"github.com/yourusername/tool-forge/internal/video"
)

// services はルーティングに必要な依存関係をまとめたものです。
type services struct {
	store   *storage.Local
	pdf     *pdf.Service
	imaging *imaging.Service
	video   *video.Service
	tracker *progress.Tracker
	logger  *log.Logger

	redis *redis.Client
}

// Close は保持している外部接続を閉じます。
func (s *services) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Printf("failed to close redis client: %v", err)
		}
	}
}

func setupServices(cfg *config.Config, logger *log.Logger) (*services, error) {
	store, err := storage.NewLocal(cfg.UploadDir, cfg.OutputDir, cfg.DownloadDir, cfg.MaxFileSize, logger)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.HTTPClientTimeout) * time.Second

	// PDF 処理: Stirling-PDF が指定されていればそちらへ委譲する
	var processor pdf.Processor
	if cfg.StirlingPDFURL != "" {
		logger.Printf("using Stirling-PDF at %s", cfg.StirlingPDFURL)
		processor = pdf.NewStirlingClient(cfg.StirlingPDFURL, cfg.StirlingPDFAPIKey, timeout)
	} else {
		logger.Printf("STIRLING_PDF_URL is empty; processing PDFs locally with pdfcpu")
		processor = pdf.NewLocalProcessor("")
	}

	// 背景除去: rembg が指定されていなければ簡易処理を使う
	var remover imaging.BackgroundRemover
	if cfg.RembgURL != "" {
		logger.Printf("using rembg at %s", cfg.RembgURL)
		remover = imaging.NewRembgClient(cfg.RembgURL, timeout)
	} else {
		logger.Printf("REMBG_URL is empty; using border keying for background removal")
		remover = imaging.NewBorderKeyer(imaging.DefaultKeyTolerance)
	}

	deps := &services{
		store:   store,
		pdf:     pdf.NewService(processor, store, logger),
		imaging: imaging.NewService(remover, store, logger),
		logger:  logger,
	}

	var trackerOpts []progress.Option
	if cfg.ProgressRedisURL != "" {
		rdb, err := setupRedis(cfg.ProgressRedisURL)
		if err != nil {
			return nil, err
		}
		deps.redis = rdb
		ttl := time.Duration(cfg.ProgressTTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = time.Hour
		}
		trackerOpts = append(trackerOpts, progress.WithMirror(progress.NewRedisStore(rdb, ttl)))
	}
	deps.tracker = progress.NewTracker(logger, trackerOpts...)

	extractor := video.NewYtdlpExtractor(cfg.YtdlpPath, logger)
	deps.video = video.NewService(extractor, store, deps.tracker, video.PlanOptions{
		DownloadDir:         cfg.DownloadDir,
		ConcurrentFragments: cfg.YtdlpConcurrentFragments,
		Retries:             cfg.YtdlpRetries,
		CookiesBrowser:      cfg.YtdlpCookiesBrowser,
	}, logger)

	return deps, nil
}

func setupRedis(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid PROGRESS_REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// 起動時に繋がらなくてもメモリ上の進捗で動作を続ける
		log.Printf("progress redis is not reachable yet: %v", err)
	}
	return rdb, nil
}

// setupRoutes は API のルーティングを行います。
func setupRoutes(router *gin.Engine, deps *services) {
	router.GET("/health", handleHealth)
	router.GET("/metrics", metrics.Handler())

	logger := deps.logger
	api := router.Group("/api")
	{
		pdfRoutes := api.Group("/pdf")
		{
			pdfRoutes.POST("/merge", pdf.MergeHandler(deps.pdf, logger))
			pdfRoutes.POST("/split", pdf.SplitHandler(deps.pdf, logger))
			pdfRoutes.POST("/add-watermark", pdf.WatermarkHandler(deps.pdf, logger))
		}

		api.POST("/remove-background", imaging.RemoveBackgroundHandler(deps.imaging, logger))
		api.POST("/convert-image", imaging.ConvertHandler(deps.imaging, logger))

		api.POST("/get-video-info", video.InfoHandler(deps.video, logger))
		api.POST("/download-video", video.DownloadHandler(deps.video, logger))
		api.GET("/download-progress", progress.Handler(deps.tracker, logger))
		api.GET("/download-progress/:id", progress.Handler(deps.tracker, logger))

		api.GET("/download/:filename", storage.DownloadHandler(deps.store, logger))
	}
}
