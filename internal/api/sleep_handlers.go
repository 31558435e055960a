package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/service"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

func Liveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "Backend connection successful!")
	}
}

// GetSummaries returns all summaries, or an inclusive date-range slice
// when both startDate and endDate are given.
func GetSummaries(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		startStr := c.Query("startDate")
		endStr := c.Query("endDate")

		if (startStr == "") != (endStr == "") {
			HandleError(c, app.Logger(), errors.New("startDate and endDate must be provided together"), 400, "Invalid date range")
			return
		}

		var (
			summaries []internal.SleepSummary
			err       error
		)
		if startStr == "" {
			summaries, err = app.SleepRepo().ListSummaries(c.Request.Context())
		} else {
			var start, end internal.Date
			if start, err = internal.ParseDate(startStr); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid startDate")
				return
			}
			if end, err = internal.ParseDate(endStr); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid endDate")
				return
			}
			summaries, err = app.SleepRepo().ListSummariesBetween(c.Request.Context(), start, end)
		}
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch summaries")
			return
		}
		if summaries == nil {
			summaries = []internal.SleepSummary{}
		}
		HandleSuccess(c, app.Logger(), summaries, nil)
	}
}

func GetBestSummary(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := app.SleepRepo().BestSummary(c.Request.Context())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "No sleep data stored")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to fetch best night")
			return
		}
		HandleSuccess(c, app.Logger(), summary, nil)
	}
}

// GetSummaryByKey resolves the path segment as a calendar date when it
// parses as yyyy-MM-dd, as a summary ID otherwise.
func GetSummaryByKey(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := service.ResolveSummary(c.Request.Context(), app.SleepRepo(), c.Param("idOrDate"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "Summary not found")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to fetch summary")
			return
		}
		HandleSuccess(c, app.Logger(), summary, nil)
	}
}

func GetStages(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := service.StagesForNight(c.Request.Context(), app.SleepRepo(), c.Param("idOrDate"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "Summary not found")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to fetch stages")
			return
		}
		if views == nil {
			views = []service.StageSegmentView{}
		}
		HandleSuccess(c, app.Logger(), views, nil)
	}
}

func GetRespiration(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := service.RespirationForNight(c.Request.Context(), app.SleepRepo(), c.Param("idOrDate"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "Summary not found")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to fetch respiration")
			return
		}
		if views == nil {
			views = []service.RespirationView{}
		}
		HandleSuccess(c, app.Logger(), views, nil)
	}
}
