package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/store"
)

// Run starts the dashboard API and the re-scoring scheduler and blocks
// until the listener stops.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	books, err := st.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	bh, err := NewBooksHandler(books)
	if err != nil {
		return err
	}

	scorer, err := recommend.NewScorer(cfg.Scoring)
	if err != nil {
		return err
	}
	sched := &Scheduler{
		Store:     st,
		Scorer:    scorer,
		ClassTopK: cfg.Scoring.ClassTopK,
		CronSpec:  cfg.Server.RescoreCron,
		Rdb:       rdb,
		Stop:      make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	protected := func(g *echo.Group) *echo.Group {
		g.Use(AuthMiddleware([]byte(secret)))
		return g
	}
	sh := &StudentsHandler{Store: st}
	sh.Register(protected(api.Group("/students")))
	ch := &ClassHandler{Store: st}
	classGroup := protected(api.Group("/class"))
	ch.Register(classGroup)
	classGroup.POST("/rescore", func(c echo.Context) error {
		if err := sched.Rescore(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusAccepted)
	})
	bh.Register(protected(api.Group("/books")))

	return e.Start(cfg.Server.Address)
}
