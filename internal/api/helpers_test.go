package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"phCareers/internal/database"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&database.User{},
		&database.Company{},
		&database.CareerPage{},
		&database.Job{},
		&database.Application{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// asUser 模拟认证中间件注入的用户身份。
func asUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func seedCompany(t *testing.T, db *gorm.DB, userID uint, slug string) database.Company {
	t.Helper()
	user := database.User{Username: "owner-" + slug, PasswordHash: "x"}
	user.ID = userID
	if err := db.FirstOrCreate(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	company := database.Company{Name: "Acme " + slug, Slug: slug, UserID: userID}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if err := db.Create(&database.CareerPage{CompanyID: company.ID}).Error; err != nil {
		t.Fatalf("seed career page: %v", err)
	}
	return company
}

func seedJob(t *testing.T, db *gorm.DB, companyID uint, title string, published bool) database.Job {
	t.Helper()
	job := database.Job{
		CompanyID:  companyID,
		Title:      title,
		Location:   "Remote",
		Employment: "full-time",
		Published:  published,
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func newMultipartUpload(t *testing.T, field, filename, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// fakeScanner 允许测试切换扫描结果。
type fakeScanner struct {
	err error
}

func (s *fakeScanner) Scan(io.Reader) error { return s.err }

// fakeResumeStorage 把上传内容留在内存里供断言。
type fakeResumeStorage struct {
	uploaded map[string][]byte
	links    map[string]string
}

func newFakeResumeStorage() *fakeResumeStorage {
	return &fakeResumeStorage{
		uploaded: map[string][]byte{},
		links:    map[string]string{},
	}
}

func (s *fakeResumeStorage) UploadResume(_ context.Context, objectKey string, reader io.Reader, _ int64, _ string) error {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectKey] = b
	return nil
}

func (s *fakeResumeStorage) ResumeDownloadURL(_ context.Context, objectKey string, _ time.Duration, _ string) (string, error) {
	if v, ok := s.links[objectKey]; ok {
		return v, nil
	}
	return "https://example.invalid/" + objectKey, nil
}
