package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liu-chun-wu/SleepGenius/internal/service"
)

// UploadCSV ingests a Garmin sleep export (multipart field "file").
// Each record is imported atomically; the response reports per-row
// outcomes rather than failing the whole batch on one bad night.
func UploadCSV(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Missing multipart field 'file'")
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to open uploaded file")
			return
		}
		defer f.Close()

		report, err := service.ImportCSV(c.Request.Context(), app.SleepRepo(), app.Logger(), f)
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Failed to process CSV")
			return
		}
		nightsImported.Add(float64(report.Imported))

		HandleSuccess(c, app.Logger(), report, map[string]any{
			"message": "Upload and processing completed.",
		})
	}
}
