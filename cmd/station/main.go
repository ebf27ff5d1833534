package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanstation/internal/auth"
	"scanstation/internal/backend"
	"scanstation/internal/camera"
	"scanstation/internal/config"
	"scanstation/internal/feedback"
	"scanstation/internal/history"
	"scanstation/internal/httpmiddleware"
	"scanstation/internal/metrics"
	"scanstation/internal/pipeline"
	"scanstation/internal/queue"
	"scanstation/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "scanstation:events")
	}

	repo := history.NewRepository(db.Client)
	met := metrics.New(nil)
	selector := camera.NewSelector()
	presenter := feedback.NewPresenter(feedback.Bell{W: os.Stdout}, cfg.FeedbackTTL)
	defer presenter.Close()

	ctx := context.Background()

	pipe := pipeline.New(pipeline.Config{
		StationID: cfg.StationID,
		Cooldown:  cfg.ScanCooldown,
		Submitter: backend.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendSkip),
		Presenter: presenter,
		Metrics:   met,
		OnOutcome: func(evt history.Event) {
			body, err := json.Marshal(evt)
			if err != nil {
				return
			}
			if err := q.Publish(ctx, queue.Message{Type: "scan", Body: body}); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		},
	})
	defer pipe.Close()
	pipe.Start(ctx)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/stations/register", func(c *gin.Context) {
		var req struct {
			StationID string `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repo.UpsertStation(c.Request.Context(), req.StationID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.StationID, "station", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), req.StationID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StationAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// The scanning widget reports its enumerated devices here; an empty or
	// failed enumeration leaves the selection empty.
	authGroup.POST("/devices", func(c *gin.Context) {
		var req struct {
			Devices []camera.Device `json:"devices"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		selector.SetDevices(req.Devices)
		c.JSON(http.StatusOK, gin.H{"devices": selector.Devices(), "selected": selector.Selected()})
	})

	authGroup.GET("/devices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"devices": selector.Devices(), "selected": selector.Selected()})
	})

	authGroup.PUT("/devices/selected", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := selector.Select(req.DeviceID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"selected": selector.Selected()})
	})

	// Decode callback from the scanning widget. The pipeline applies the
	// single-flight debounce, routes by the attendance window, and submits.
	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			RawValue string `json:"raw_value"`
			Codes    []struct {
				RawValue string `json:"raw_value"`
			} `json:"codes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// A decode tick may carry several entries; only the first non-empty
		// one is consumed.
		raw := req.RawValue
		for _, code := range req.Codes {
			if raw != "" {
				break
			}
			raw = code.RawValue
		}
		out := pipe.HandleDecode(c.Request.Context(), raw)
		c.JSON(http.StatusOK, out)
	})

	authGroup.POST("/scans/reset", func(c *gin.Context) {
		pipe.Reset()
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	})

	authGroup.GET("/feedback", func(c *gin.Context) {
		c.JSON(http.StatusOK, presenter.Snapshot())
	})

	authGroup.GET("/history", func(c *gin.Context) {
		route := c.Query("route")
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		events, err := repo.ListEvents(c.Request.Context(), cfg.StationID, route, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting station %s on :%s", cfg.StationID, cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
