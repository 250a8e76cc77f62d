package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/rembatch/config"
	"github.com/chaos-io/rembatch/handler"
	"github.com/chaos-io/rembatch/middleware"
	"github.com/chaos-io/rembatch/pipeline"
	"github.com/chaos-io/rembatch/rembg"
	"github.com/chaos-io/rembatch/service"
	"github.com/chaos-io/rembatch/util"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	if endpoint := os.Getenv("REMBG_ENDPOINT"); endpoint != "" {
		cfg.Rembg.Endpoint = endpoint
	}

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting rembatch server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	if err := os.MkdirAll(cfg.Upload.SpoolDir, 0755); err != nil {
		util.Logger.Fatal("failed to create spool directory", zap.Error(err))
	}

	// 结果缓存，连不上只降级不报错
	var cache pipeline.Cache
	if cfg.Redis.Enabled {
		redisCache := service.NewRedisCache(&cfg.Redis)
		if err := redisCache.Ping(context.Background()); err != nil {
			util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			util.Logger.Info("redis connected successfully")
			cache = redisCache
		}
		defer redisCache.Close()
	}

	// 模型客户端进程内只建一次，所有请求复用
	var remover rembg.Remover
	if cfg.Rembg.Endpoint == "" {
		util.Logger.Warn("rembg endpoint not configured, using noop remover")
		remover = rembg.NewNoopRemover()
	} else {
		remover = rembg.NewHTTPRemover(cfg.Rembg.Endpoint,
			rembg.WithModel(cfg.Rembg.Model),
			rembg.WithTimeout(cfg.Rembg.Timeout))
	}

	processor := pipeline.NewProcessor(remover, cache)
	processHandler := handler.NewProcessHandler(cfg, processor)

	// 定时清理残留的临时上传文件
	c := cron.New()
	if _, err := c.AddFunc(cfg.Cleanup.Schedule, func() {
		sweepSpoolDir(cfg.Upload.SpoolDir, cfg.Cleanup.MaxAge)
	}); err != nil {
		util.Logger.Fatal("failed to schedule spool cleanup", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/health", handler.Health(Version))
	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/process", processHandler.Process)
	}

	util.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		util.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// sweepSpoolDir 删除超过 maxAge 的临时文件
func sweepSpoolDir(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		util.Logger.Warn("failed to read spool directory", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			util.Logger.Warn("failed to remove stale spool file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		util.Logger.Info("spool cleanup finished", zap.Int("removed", removed))
	}
}
