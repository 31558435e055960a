package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/gemini"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const nightJSON = `{"summaryId":"abc","calendarDate":"2025-06-02","durationInSeconds":28800,` +
	`"deepSleepDurationInSeconds":7200,"lightSleepDurationInSeconds":14400,"remSleepInSeconds":5400,` +
	`"awakeDurationInSeconds":1800,"overallSleepScore":{"value":82,"qualifierKey":"GOOD"},` +
	`"sleepLevelsMap":{"deep":[{"startTimeInSeconds":1000,"endTimeInSeconds":1500}]},` +
	`"timeOffsetSleepRespiration":{"0":14.5}}`

type fakeGenerator struct {
	answer string
	err    error
	called bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.called = true
	return f.answer, f.err
}

func setupRouter(t *testing.T, gen gemini.Generator) (*gin.Engine, storage.SleepRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	repo, err := storage.NewFileStorage(t.TempDir(), logger)
	assert.NoError(t, err)
	return NewRouter(NewApp(logger, repo, gen)), repo
}

func uploadCSVRequest(t *testing.T, jsonRecords ...string) *http.Request {
	t.Helper()
	var csv strings.Builder
	csv.WriteString("data\n")
	for _, r := range jsonRecords {
		csv.WriteString(`"` + strings.ReplaceAll(r, `"`, `""`) + `"` + "\n")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "sleeps.csv")
	assert.NoError(t, err)
	_, err = part.Write([]byte(csv.String()))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	req, _ := http.NewRequest("POST", "/api/upload-csv", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed
}

func TestLiveness(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/test", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Backend connection successful")
}

func TestUploadThenQueryEndToEnd(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadCSVRequest(t, nightJSON))
	assert.Equal(t, 200, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["imported"])

	// By summary ID.
	rec = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sleep-summary/abc", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(28800), data["totalDuration"])
	assert.Equal(t, float64(82), data["overallScore"])

	// By date.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-summary/2025-06-02", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	// Stages: one segment, duration 500, parent ID denormalized.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-stages/abc", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	stages := decodeBody(t, rec)["data"].([]any)
	assert.Len(t, stages, 1)
	stage := stages[0].(map[string]any)
	assert.Equal(t, float64(500), stage["duration"])
	assert.Equal(t, "abc", stage["summaryId"])

	// Respiration: one sample at offset 0, rate 14.5, date denormalized.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-respiration/abc", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	samples := decodeBody(t, rec)["data"].([]any)
	assert.Len(t, samples, 1)
	sample := samples[0].(map[string]any)
	assert.Equal(t, float64(0), sample["offsetSeconds"])
	assert.Equal(t, 14.5, sample["respirationRate"])
	assert.Equal(t, "2025-06-02", sample["date"])
}

func TestGetSummaries_RangeAndAll(t *testing.T) {
	r, repo := setupRouter(t, &fakeGenerator{})
	ctx := context.Background()
	for day := 1; day <= 3; day++ {
		assert.NoError(t, repo.SaveNight(ctx, &internal.SleepSummary{
			SummaryID: strings.Repeat("x", day),
			Date:      internal.NewDate(2025, 6, day),
		}, nil, nil))
	}

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sleep-summary", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Len(t, decodeBody(t, rec)["data"].([]any), 3)

	// Inclusive on both ends.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-summary?startDate=2025-06-01&endDate=2025-06-02", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Len(t, decodeBody(t, rec)["data"].([]any), 2)

	// One param without the other is a bad request.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-summary?startDate=2025-06-01", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)

	// Malformed date is a bad request, not a server error.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-summary?startDate=junk&endDate=2025-06-02", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestGetBestSummary(t *testing.T) {
	r, repo := setupRouter(t, &fakeGenerator{})
	ctx := context.Background()

	// Empty store: 404, not an empty object.
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sleep-summary/best", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)

	low, high := 50, 90
	assert.NoError(t, repo.SaveNight(ctx, &internal.SleepSummary{SummaryID: "low", Date: internal.NewDate(2025, 6, 1), OverallScore: &low}, nil, nil))
	assert.NoError(t, repo.SaveNight(ctx, &internal.SleepSummary{SummaryID: "high", Date: internal.NewDate(2025, 6, 2), OverallScore: &high}, nil, nil))

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sleep-summary/best", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "high", data["summaryId"])
}

func TestGetSummary_NotFound(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sleep-summary/nope", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestChatbotQuery_Success(t *testing.T) {
	gen := &fakeGenerator{answer: "Sleep earlier."}
	r, _ := setupRouter(t, gen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadCSVRequest(t, nightJSON))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/chatbot-query", strings.NewReader(`{"date":"2025-06-02","question":"How did I sleep?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, gen.called)

	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Sleep earlier.", data["answer"])
	assert.Equal(t, float64(82), data["score"])
	assert.Equal(t, "gemini", data["recommendation"])
}

func TestChatbotQuery_NoDataNeverCallsGenerator(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	r, _ := setupRouter(t, gen)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/chatbot-query", strings.NewReader(`{"date":"2030-01-01","question":"?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
	assert.False(t, gen.called)
}

func TestChatbotQuery_UpstreamFailureIsTaggedFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	r, _ := setupRouter(t, gen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadCSVRequest(t, nightJSON))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/chatbot-query", strings.NewReader(`{"date":"2025-06-02","question":"?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	// Upstream failure is not an HTTP error.
	assert.Equal(t, 200, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "fallback", data["recommendation"])
	assert.Contains(t, data["answer"], "try again later")
	assert.Equal(t, float64(82), data["score"])
}

func TestChatbotQuery_Validation(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/chatbot-query", strings.NewReader(`{"date":"2025-06-02"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/chatbot-query", strings.NewReader(`{"date":"junk","question":"?"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestUploadCSV_BadInput(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	// Missing multipart field.
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/upload-csv", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestUploadCSV_PartialFailureReport(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	bad := `{"calendarDate":"2025-06-04"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadCSVRequest(t, nightJSON, bad))
	assert.Equal(t, 200, rec.Code)

	report := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), report["imported"])
	failed := report["failed"].([]any)
	assert.Len(t, failed, 1)
	assert.Equal(t, float64(2), failed[0].(map[string]any)["row"])
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/test", nil)
	r.ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "sleepgenius_http_requests_total")
}
