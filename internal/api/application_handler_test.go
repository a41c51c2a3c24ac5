package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"phCareers/internal/database"
)

func newApplicationRouter(t *testing.T, handler *ApplicationHandler, userID uint) *httptest.Server {
	t.Helper()
	router := newTestRouter()
	router.POST("/careers/:slug/jobs/:jobId/apply", handler.Apply)

	owned := router.Group("/companies/:companyId/applications")
	owned.Use(asUser(userID))
	{
		owned.GET("", handler.List)
		owned.PUT("/:applicationId/status", handler.UpdateStatus)
		owned.GET("/:applicationId/resume-link", handler.ResumeLink)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestApplyStoresResumeAndRecord(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	storage := newFakeResumeStorage()
	handler := NewApplicationHandler(db, storage, &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	body, contentType := newMultipartUpload(t, "resume", "cv.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
		"phone": "555-0101",
	})

	resp, err := http.Post(server.URL+"/careers/acme/jobs/"+strconv.Itoa(int(job.ID))+"/apply", contentType, body)
	if err != nil {
		t.Fatalf("post apply: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var application database.Application
	if err := db.First(&application).Error; err != nil {
		t.Fatalf("load application: %v", err)
	}
	if application.Name != "Jane Doe" || application.Email != "jane@example.com" {
		t.Fatalf("unexpected applicant: %+v", application)
	}
	if application.Status != "new" {
		t.Fatalf("status = %q, want new", application.Status)
	}
	if application.ResumeKey == "" {
		t.Fatal("resume key not recorded")
	}
	if _, ok := storage.uploaded[application.ResumeKey]; !ok {
		t.Fatalf("resume %q not uploaded", application.ResumeKey)
	}
}

func TestApplyRejectsMaliciousFile(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	storage := newFakeResumeStorage()
	handler := NewApplicationHandler(db, storage, &fakeScanner{err: ErrMaliciousFile}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	body, contentType := newMultipartUpload(t, "resume", "cv.pdf", "application/pdf", []byte("bad"), map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})

	resp, err := http.Post(server.URL+"/careers/acme/jobs/"+strconv.Itoa(int(job.ID))+"/apply", contentType, body)
	if err != nil {
		t.Fatalf("post apply: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(storage.uploaded) != 0 {
		t.Fatal("malicious file must not reach storage")
	}
}

func TestApplyScannerOutageFailsClosed(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	storage := newFakeResumeStorage()
	handler := NewApplicationHandler(db, storage, &fakeScanner{err: errors.New("clamd unreachable")}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	body, contentType := newMultipartUpload(t, "resume", "cv.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})

	resp, err := http.Post(server.URL+"/careers/acme/jobs/"+strconv.Itoa(int(job.ID))+"/apply", contentType, body)
	if err != nil {
		t.Fatalf("post apply: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if len(storage.uploaded) != 0 {
		t.Fatal("unscanned file must not reach storage")
	}
}

func TestApplyRejectsUnpublishedJob(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Hidden Role", false)

	handler := NewApplicationHandler(db, newFakeResumeStorage(), &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	body, contentType := newMultipartUpload(t, "resume", "cv.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})

	resp, err := http.Post(server.URL+"/careers/acme/jobs/"+strconv.Itoa(int(job.ID))+"/apply", contentType, body)
	if err != nil {
		t.Fatalf("post apply: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestApplyRejectsUnsupportedFormat(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	handler := NewApplicationHandler(db, newFakeResumeStorage(), &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	body, contentType := newMultipartUpload(t, "resume", "cv.exe", "application/octet-stream", []byte("MZ"), map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})

	resp, err := http.Post(server.URL+"/careers/acme/jobs/"+strconv.Itoa(int(job.ID))+"/apply", contentType, body)
	if err != nil {
		t.Fatalf("post apply: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListApplicationsFiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	for _, status := range []string{"new", "reviewing", "new"} {
		app := database.Application{
			JobID:     job.ID,
			CompanyID: company.ID,
			Name:      "Candidate",
			Email:     "c@example.com",
			Status:    status,
		}
		if err := db.Create(&app).Error; err != nil {
			t.Fatalf("seed application: %v", err)
		}
	}

	handler := NewApplicationHandler(db, newFakeResumeStorage(), &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	resp, err := http.Get(server.URL + "/companies/" + strconv.Itoa(int(company.ID)) + "/applications?status=new")
	if err != nil {
		t.Fatalf("get applications: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Items []applicationResponse `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(payload.Items))
	}
	for _, item := range payload.Items {
		if item.Status != "new" {
			t.Fatalf("unexpected status %q in filtered list", item.Status)
		}
	}
}

func TestUpdateStatusRejectsForeignCompany(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	app := database.Application{JobID: job.ID, CompanyID: company.ID, Name: "C", Email: "c@example.com", Status: "new"}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	handler := NewApplicationHandler(db, newFakeResumeStorage(), &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	// 以另一个用户身份访问。
	server := newApplicationRouter(t, handler, 2)

	payload := bytes.NewBufferString(`{"status":"hired"}`)
	req, err := http.NewRequest(http.MethodPut,
		server.URL+"/companies/"+strconv.Itoa(int(company.ID))+"/applications/"+strconv.Itoa(int(app.ID))+"/status",
		payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	var reloaded database.Application
	if err := db.First(&reloaded, app.ID).Error; err != nil {
		t.Fatalf("reload application: %v", err)
	}
	if reloaded.Status != "new" {
		t.Fatalf("status changed to %q despite 403", reloaded.Status)
	}
}

func TestResumeLinkReturnsPresignedURL(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)

	app := database.Application{
		JobID: job.ID, CompanyID: company.ID,
		Name: "C", Email: "c@example.com",
		ResumeKey: "applications/1/1/abc.pdf", Status: "new",
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	storage := newFakeResumeStorage()
	storage.links["applications/1/1/abc.pdf"] = "https://cdn.example/presigned"
	handler := NewApplicationHandler(db, storage, &fakeScanner{}, nil, newTestLogger(), 0, 1<<20)
	server := newApplicationRouter(t, handler, 1)

	resp, err := http.Get(server.URL + "/companies/" + strconv.Itoa(int(company.ID)) + "/applications/" + strconv.Itoa(int(app.ID)) + "/resume-link")
	if err != nil {
		t.Fatalf("get resume link: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.URL != "https://cdn.example/presigned" {
		t.Fatalf("url = %q", payload.URL)
	}
}
