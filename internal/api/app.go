package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/gemini"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

type App interface {
	Logger() internal.Logger
	SleepRepo() storage.SleepRepository
	Generator() gemini.Generator
}

type app struct {
	logger internal.Logger
	repo   storage.SleepRepository
	gen    gemini.Generator
}

func NewApp(logger internal.Logger, repo storage.SleepRepository, gen gemini.Generator) App {
	return &app{logger: logger, repo: repo, gen: gen}
}

func (a *app) Logger() internal.Logger            { return a.logger }
func (a *app) SleepRepo() storage.SleepRepository { return a.repo }
func (a *app) Generator() gemini.Generator        { return a.gen }

// NewRouter wires middleware and all routes. Shared by main and the
// handler tests.
func NewRouter(a App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware())

	r.GET("/metrics", MetricsHandler())

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/test", Liveness())
		apiGroup.GET("/sleep-summary", GetSummaries(a))
		apiGroup.GET("/sleep-summary/best", GetBestSummary(a))
		apiGroup.GET("/sleep-summary/:idOrDate", GetSummaryByKey(a))
		apiGroup.GET("/sleep-stages/:idOrDate", GetStages(a))
		apiGroup.GET("/sleep-respiration/:idOrDate", GetRespiration(a))
		apiGroup.POST("/upload-csv", UploadCSV(a))
		apiGroup.POST("/chatbot-query", ChatbotQuery(a))
	}
	return r
}
