package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/gorm"

	"phCareers/internal/blocks"
	"phCareers/internal/database"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
	"phCareers/internal/render"
)

type pageTestEnv struct {
	db     *gorm.DB
	server *httptest.Server
}

func newPageEnv(t *testing.T, userID uint) *pageTestEnv {
	t.Helper()
	db := newTestDB(t)
	logger := newTestLogger()

	registry := blocks.NewRegistry()
	normalizer := document.NewNormalizer(registry, logger)
	renderer := render.NewRenderer(registry, logger)
	store := pagestore.NewStore(db, normalizer, nil, logger)
	handler := NewPageHandler(db, registry, normalizer, store, renderer, logger)

	router := newTestRouter()
	group := router.Group("/companies/:companyId/page")
	group.Use(asUser(userID))
	{
		group.GET("", handler.GetDraft)
		group.PUT("", handler.ReplaceDraft)
		group.POST("/reset", handler.ResetDraft)
		group.GET("/preview", handler.Preview)
		group.POST("/publish", handler.Publish)
		group.POST("/unpublish", handler.Unpublish)
		group.PUT("/theme", handler.UpdateTheme)
		group.POST("/blocks", handler.AddBlock)
		group.DELETE("/blocks/:blockId", handler.DeleteBlock)
		group.POST("/blocks/:blockId/duplicate", handler.DuplicateBlock)
		group.POST("/blocks/:blockId/move", handler.MoveBlock)
		group.PUT("/blocks/:blockId/props", handler.UpdateBlockProps)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &pageTestEnv{db: db, server: server}
}

func (e *pageTestEnv) pageURL(companyID uint, suffix string) string {
	return fmt.Sprintf("%s/companies/%d/page%s", e.server.URL, companyID, suffix)
}

func (e *pageTestEnv) do(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

type wireBlockView struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Props map[string]any `json:"props"`
}

type wireDocView struct {
	Content []wireBlockView `json:"content"`
}

func decodeDraft(t *testing.T, resp *http.Response) wireDocView {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200, body: %s", resp.StatusCode, raw)
	}
	var envelope struct {
		Document wireDocView `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	return envelope.Document
}

func blockTypes(doc wireDocView) []string {
	types := make([]string, 0, len(doc.Content))
	for _, block := range doc.Content {
		types = append(types, block.Type)
	}
	return types
}

func TestGetDraftBuildsSkeleton(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	doc := decodeDraft(t, resp)

	if len(doc.Content) < 2 {
		t.Fatalf("skeleton has %d blocks, want at least hero and footer", len(doc.Content))
	}
	if doc.Content[0].Type != "Hero" {
		t.Fatalf("first block = %s, want Hero", doc.Content[0].Type)
	}
	wantHeroID := fmt.Sprintf("hero-section-%d", company.ID)
	if doc.Content[0].ID != wantHeroID {
		t.Fatalf("hero id = %s, want %s", doc.Content[0].ID, wantHeroID)
	}
	if doc.Content[len(doc.Content)-1].Type != "Footer" {
		t.Fatalf("last block = %s, want Footer", doc.Content[len(doc.Content)-1].Type)
	}
}

func TestGetDraftRejectsForeignCompany(t *testing.T) {
	env := newPageEnv(t, 2)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAddBlockKeepsFooterLast(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Benefits"})
	doc := decodeDraft(t, resp)

	types := blockTypes(doc)
	if types[0] != "Hero" || types[len(types)-1] != "Footer" {
		t.Fatalf("pinned blocks out of place: %v", types)
	}
	found := false
	for _, typ := range types {
		if typ == "Benefits" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Benefits block missing: %v", types)
	}
}

func TestAddBlockRejectsUnknownType(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Carousel"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteHeroIsForbidden(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	heroID := fmt.Sprintf("hero-section-%d", company.ID)
	resp := env.do(t, http.MethodDelete, env.pageURL(company.ID, "/blocks/"+heroID), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestDeleteBlockRemovesIt(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Team"})
	doc := decodeDraft(t, resp)

	var teamID string
	for _, block := range doc.Content {
		if block.Type == "Team" {
			teamID = block.ID
		}
	}
	if teamID == "" {
		t.Fatal("team block was not added")
	}

	resp = env.do(t, http.MethodDelete, env.pageURL(company.ID, "/blocks/"+teamID), nil)
	doc = decodeDraft(t, resp)
	for _, typ := range blockTypes(doc) {
		if typ == "Team" {
			t.Fatal("team block still present after delete")
		}
	}
}

func TestDeleteBlockUnknownID(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodDelete, env.pageURL(company.ID, "/blocks/no-such-block"), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateBlockPropsPersists(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	heroID := fmt.Sprintf("hero-section-%d", company.ID)
	resp := env.do(t, http.MethodPut, env.pageURL(company.ID, "/blocks/"+heroID+"/props"), map[string]any{
		"title":    "Join the rocket ship",
		"subtitle": "We ship weekly",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	doc := decodeDraft(t, resp)
	if got := doc.Content[0].Props["title"]; got != "Join the rocket ship" {
		t.Fatalf("hero title = %v after reload", got)
	}
}

func TestMoveBlockReorders(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Benefits"})
	decodeDraft(t, resp)
	resp = env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Team"})
	doc := decodeDraft(t, resp)

	var teamID string
	for _, block := range doc.Content {
		if block.Type == "Team" {
			teamID = block.ID
		}
	}

	resp = env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks/"+teamID+"/move"), map[string]any{"to": 1})
	doc = decodeDraft(t, resp)

	types := blockTypes(doc)
	if types[0] != "Hero" || types[len(types)-1] != "Footer" {
		t.Fatalf("pinned blocks moved: %v", types)
	}
	if types[1] != "Team" {
		t.Fatalf("block order after move = %v, want Team at index 1", types)
	}
}

func TestPublishLifecycle(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	// 发布要求草稿已保存过，reset 会落库默认骨架。
	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/reset"), nil)
	decodeDraft(t, resp)

	resp = env.do(t, http.MethodPost, env.pageURL(company.ID, "/publish"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish status = %d, want 200", resp.StatusCode)
	}

	var page database.CareerPage
	if err := env.db.Where("company_id = ?", company.ID).First(&page).Error; err != nil {
		t.Fatalf("load page: %v", err)
	}
	if !page.Published {
		t.Fatal("page must be published after publish")
	}

	resp = env.do(t, http.MethodPost, env.pageURL(company.ID, "/unpublish"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unpublish status = %d, want 200", resp.StatusCode)
	}

	if err := env.db.Where("company_id = ?", company.ID).First(&page).Error; err != nil {
		t.Fatalf("reload page: %v", err)
	}
	if page.Published {
		t.Fatal("page must be unpublished after unpublish")
	}
}

func TestUpdateThemeRoundTrip(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	decodeDraft(t, resp)

	resp = env.do(t, http.MethodPut, env.pageURL(company.ID, "/theme"), map[string]string{
		"primary_color":   "#FF5733",
		"secondary_color": "#33C1FF",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	defer resp.Body.Close()
	var envelope struct {
		Meta pagestore.PageMeta `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if envelope.Meta.Theme.PrimaryColor != "#FF5733" {
		t.Fatalf("primary color = %q after reload", envelope.Meta.Theme.PrimaryColor)
	}
}

func TestReplaceDraftRejectsGarbage(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodGet, env.pageURL(company.ID, ""), nil)
	decodeDraft(t, resp)

	req, err := http.NewRequest(http.MethodPut, env.pageURL(company.ID, ""), strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replace draft: %v", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", putResp.StatusCode)
	}
}

func TestResetDraftDropsCustomBlocks(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")

	resp := env.do(t, http.MethodPost, env.pageURL(company.ID, "/blocks"), map[string]any{"type": "Video"})
	decodeDraft(t, resp)

	resp = env.do(t, http.MethodPost, env.pageURL(company.ID, "/reset"), nil)
	doc := decodeDraft(t, resp)
	for _, typ := range blockTypes(doc) {
		if typ == "Video" {
			t.Fatal("video block survived reset")
		}
	}
	if doc.Content[0].Type != "Hero" {
		t.Fatalf("reset draft starts with %s, want Hero", doc.Content[0].Type)
	}
}

func TestPreviewRendersDraftWithJobs(t *testing.T) {
	env := newPageEnv(t, 1)
	company := seedCompany(t, env.db, 1, "acme")
	seedJob(t, env.db, company.ID, "Site Reliability Engineer", true)
	seedJob(t, env.db, company.ID, "Hidden Role", false)

	resp := env.do(t, http.MethodGet, env.pageURL(company.ID, "/preview"), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	// 预览给编辑者看，未发布职位也要出现；公共页测试另行验证不泄露。
	body := string(raw)
	if !strings.Contains(body, "Site Reliability Engineer") {
		t.Fatal("preview must include published jobs")
	}
	if !strings.Contains(body, "Hidden Role") {
		t.Fatal("preview must include unpublished jobs")
	}
}
