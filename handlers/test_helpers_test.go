package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"law_timeline_app_go/middleware"
	"law_timeline_app_go/models"
	"law_timeline_app_go/services"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	// Unique shared memory name isolates tests while keeping one database per test
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(models.All()...))
	return testDB
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []services.Email
}

func (m *recordingMailer) Send(_ context.Context, e *services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *e)
	return nil
}

type apiFixture struct {
	e      *echo.Echo
	db     *gorm.DB
	mailer *recordingMailer

	firm    models.Firm
	admin   models.User
	lawyer  models.User
	client  models.User
	caseRec models.Case
}

// newAPIFixture wires the engine the way main does, with local storage and
// a recording mailer, and seeds one firm with a case
func newAPIFixture(t *testing.T) *apiFixture {
	database := setupTestDB(t)
	f := &apiFixture{db: database, mailer: &recordingMailer{}}

	previous := services.Timeline
	services.Timeline = &services.TimelineService{
		DB:       database,
		Clock:    testclock.NewClock(testNow),
		Storage:  services.NewLocalStorage(t.TempDir()),
		Calendar: services.DisabledCalendar{},
		Mailer:   f.mailer,
		Metrics:  services.NewMetricsCollector(),
		AppURL:   "https://app.test",
		Language: "en",
	}
	t.Cleanup(func() { services.Timeline = previous })

	f.e = newEchoWithUploadLimit(f, 100)

	f.firm = models.Firm{Name: "Acme Legal", Slug: "acme", Timezone: "America/Bogota"}
	require.NoError(t, database.Create(&f.firm).Error)
	f.admin = f.addUser(t, "Ada Admin", models.RoleAdmin)
	f.lawyer = f.addUser(t, "Lee Lawyer", models.RoleLawyer)
	f.client = f.addUser(t, "Carla Client", models.RoleClient)

	f.caseRec = models.Case{
		FirmID:       f.firm.ID,
		ClientID:     f.client.ID,
		CaseNumber:   "TEST-" + uuid.NewString()[:8],
		Title:        "Contract dispute",
		Status:       models.CaseStatusOpen,
		Priority:     models.CasePriorityNormal,
		AssignedToID: &f.lawyer.ID,
	}
	require.NoError(t, database.Create(&f.caseRec).Error)
	return f
}

// newEchoWithUploadLimit builds the API router the way main mounts it
func newEchoWithUploadLimit(f *apiFixture, uploadsPerMinute int) *echo.Echo {
	e := echo.New()
	api := e.Group("/api")
	api.Use(middleware.Locale())
	api.Use(middleware.RequireActor(f.db))
	RegisterTimelineRoutes(api, middleware.NewUploadRateLimiter(uploadsPerMinute, time.Minute).Middleware())
	return e
}

func (f *apiFixture) addUser(t *testing.T, name, role string) models.User {
	u := models.User{
		Name:     name,
		Email:    uuid.NewString()[:8] + "@acme.test",
		FirmID:   &f.firm.ID,
		Role:     role,
		IsActive: true,
		Language: "en",
	}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

// do sends a request as userID through the full echo stack
func (f *apiFixture) do(method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) doJSON(t *testing.T, method, path, userID string, payload interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return f.do(method, path, userID, body, echo.MIMEApplicationJSON)
}

// doUpload posts a multipart form with one "file" part and extra fields
func (f *apiFixture) doUpload(t *testing.T, path, userID, filename, contentType, content string, fields map[string]string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return f.do(http.MethodPost, path, userID, body, writer.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (f *apiFixture) casePath(suffix string) string {
	return "/api/cases/" + f.caseRec.ID + suffix
}
