package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"phCareers/internal/database"
)

func newCompanyRouter(t *testing.T, handler *CompanyHandler, userID uint) *httptest.Server {
	t.Helper()
	router := newTestRouter()
	group := router.Group("/companies")
	group.Use(asUser(userID))
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.GET("/:companyId", handler.Get)
		group.PUT("/:companyId", handler.Update)
		group.DELETE("/:companyId", handler.Delete)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestCreateCompanyCreatesCareerPage(t *testing.T) {
	db := newTestDB(t)
	user := database.User{Username: "owner", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	handler := NewCompanyHandler(db, nil, newTestLogger(), 5)
	server := newCompanyRouter(t, handler, user.ID)

	resp := postJSON(t, server.URL+"/companies", map[string]string{
		"name": "Acme Inc",
		"slug": "acme",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var company database.Company
	if err := db.Where("slug = ?", "acme").First(&company).Error; err != nil {
		t.Fatalf("load company: %v", err)
	}

	var page database.CareerPage
	if err := db.Where("company_id = ?", company.ID).First(&page).Error; err != nil {
		t.Fatalf("career page must be created alongside company: %v", err)
	}
	if page.Published {
		t.Fatal("new career page must start unpublished")
	}
}

func TestCreateCompanyRejectsDuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	seedCompany(t, db, 1, "acme")

	handler := NewCompanyHandler(db, nil, newTestLogger(), 5)
	server := newCompanyRouter(t, handler, 1)

	resp := postJSON(t, server.URL+"/companies", map[string]string{
		"name": "Other",
		"slug": "acme",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateCompanyRejectsBadSlug(t *testing.T) {
	db := newTestDB(t)
	user := database.User{Username: "owner", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	handler := NewCompanyHandler(db, nil, newTestLogger(), 5)
	server := newCompanyRouter(t, handler, user.ID)

	for _, slug := range []string{"has space", "trailing-", "-leading", "emo🦊ji", ""} {
		resp := postJSON(t, server.URL+"/companies", map[string]string{
			"name": "Acme",
			"slug": slug,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("slug %q: status = %d, want 400", slug, resp.StatusCode)
		}
	}
}

func TestCreateCompanyEnforcesQuota(t *testing.T) {
	db := newTestDB(t)
	seedCompany(t, db, 1, "first")

	handler := NewCompanyHandler(db, nil, newTestLogger(), 1)
	server := newCompanyRouter(t, handler, 1)

	resp := postJSON(t, server.URL+"/companies", map[string]string{
		"name": "Second",
		"slug": "second",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestGetCompanyHidesForeignTenant(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")

	handler := NewCompanyHandler(db, nil, newTestLogger(), 5)
	server := newCompanyRouter(t, handler, 2)

	resp, err := http.Get(server.URL + "/companies/" + strconv.Itoa(int(company.ID)))
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestDeleteCompanyCascades(t *testing.T) {
	db := newTestDB(t)
	company := seedCompany(t, db, 1, "acme")
	job := seedJob(t, db, company.ID, "Backend Engineer", true)
	app := database.Application{JobID: job.ID, CompanyID: company.ID, Name: "C", Email: "c@example.com", Status: "new"}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}

	handler := NewCompanyHandler(db, nil, newTestLogger(), 5)
	server := newCompanyRouter(t, handler, 1)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/companies/"+strconv.Itoa(int(company.ID)), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete company: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	var count int64
	for _, model := range []any{&database.Company{}, &database.CareerPage{}, &database.Job{}, &database.Application{}} {
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count after delete: %v", err)
		}
		if count != 0 {
			t.Fatalf("%T rows remain after cascade delete", model)
		}
	}
}
