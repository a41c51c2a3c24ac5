package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"phCareers/internal/blocks"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
)

type fakeStore struct {
	draft   document.Document
	meta    pagestore.PageMeta
	saveErr error
	saved   []document.Document
	pubErr  error
	pubs    int
}

func (f *fakeStore) LoadDraft(_ context.Context, _, _ uint) (document.Document, pagestore.PageMeta, error) {
	return f.draft, f.meta, nil
}

func (f *fakeStore) SaveDraft(_ context.Context, _, _ uint, doc document.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, doc.Clone())
	return nil
}

func (f *fakeStore) Publish(_ context.Context, _, _ uint) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.pubs++
	return nil
}

func newTestSession(t *testing.T, store *fakeStore) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := blocks.NewRegistry()
	normalizer := document.NewNormalizer(registry, logger)
	s := NewSession(registry, normalizer, store, 7, 1, logger)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return s
}

func heroOf(t *testing.T, doc document.Document) document.Block {
	t.Helper()
	for _, b := range doc.Blocks {
		if b.Type == blocks.TypeHero {
			return b
		}
	}
	t.Fatal("hero missing")
	return document.Block{}
}

func TestSessionStartNormalizesEmptyDraft(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	doc := s.Document()
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected hero+footer after start, got %d blocks", len(doc.Blocks))
	}
	if doc.Blocks[0].Type != blocks.TypeHero || doc.Blocks[1].Type != blocks.TypeFooter {
		t.Fatalf("unexpected skeleton: %+v", doc.Blocks)
	}
}

func TestSessionAddAndDeleteBlock(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	if err := s.AddBlock(blocks.TypeBenefits, 1); err != nil {
		t.Fatalf("add block: %v", err)
	}
	doc := s.Document()
	if len(doc.Blocks) != 3 || doc.Blocks[1].Type != blocks.TypeBenefits {
		t.Fatalf("benefits not inserted in the middle: %+v", doc.Blocks)
	}

	if err := s.DeleteBlock(doc.Blocks[1].ID); err != nil {
		t.Fatalf("delete block: %v", err)
	}
	if got := len(s.Document().Blocks); got != 2 {
		t.Fatalf("expected skeleton after delete, got %d", got)
	}
}

func TestSessionRefusesDeletingPinnedBlocks(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})
	doc := s.Document()

	for _, b := range doc.Blocks {
		if err := s.DeleteBlock(b.ID); !errors.Is(err, ErrForbidden) {
			t.Fatalf("deleting %s should be forbidden, got %v", b.Type, err)
		}
	}
}

func TestSessionRefusesDuplicatingPinnedBlocks(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	hero := heroOf(t, s.Document())
	if err := s.DuplicateBlock(hero.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("duplicating hero should be forbidden, got %v", err)
	}
}

func TestSessionUpdatePropsRoutesThroughNormalize(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	hero := heroOf(t, s.Document())
	err := s.UpdateProps(hero.ID, blocks.Props{"title": "New", "hacked": true})
	if err != nil {
		t.Fatalf("update props: %v", err)
	}

	updated := heroOf(t, s.Document())
	if updated.Props["title"] != "New" {
		t.Fatalf("title not applied: %v", updated.Props)
	}
	if _, ok := updated.Props["hacked"]; ok {
		t.Fatal("schema-foreign key survived a mutation")
	}
}

func TestSessionMoveBlockKeepsPins(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	if err := s.AddBlock(blocks.TypeBenefits, 1); err != nil {
		t.Fatalf("add benefits: %v", err)
	}
	if err := s.AddBlock(blocks.TypeTeam, 2); err != nil {
		t.Fatalf("add team: %v", err)
	}

	doc := s.Document()
	benefitsID := doc.Blocks[1].ID

	// 尝试把 Benefits 挪到 0 号位：规范化仍会把 Hero 钉回开头。
	if err := s.MoveBlock(benefitsID, 0); err != nil {
		t.Fatalf("move block: %v", err)
	}

	moved := s.Document()
	if moved.Blocks[0].Type != blocks.TypeHero {
		t.Fatalf("hero lost its pin: %+v", moved.Blocks)
	}
	if moved.Blocks[len(moved.Blocks)-1].Type != blocks.TypeFooter {
		t.Fatalf("footer lost its pin: %+v", moved.Blocks)
	}
}

func TestSessionAssetInjectionPrecedence(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})

	// 手工设置 Hero 背景后，主题 banner 变化不得覆盖。
	hero := heroOf(t, s.Document())
	if err := s.UpdateProps(hero.ID, blocks.Props{"backgroundImageUrl": "manual.png"}); err != nil {
		t.Fatalf("update props: %v", err)
	}

	s.UpdateAssets(pagestore.Assets{BannerURL: "theme-v1.png"})
	if got := heroOf(t, s.Document()).Props["backgroundImageUrl"]; got != "manual.png" {
		t.Fatalf("manual edit lost to theme asset: %v", got)
	}

	// 空字段被主题资产填充。
	s.UpdateAssets(pagestore.Assets{BannerURL: "theme-v1.png", LogoURL: "logo.png"})
	if got := heroOf(t, s.Document()).Props["logoUrl"]; got != "logo.png" {
		t.Fatalf("empty hero field should adopt theme asset: %v", got)
	}

	// 资产被移除且 Hero 字段仍等于旧值时，字段一并清空。
	s.UpdateAssets(pagestore.Assets{BannerURL: "theme-v1.png"})
	if got := heroOf(t, s.Document()).Props["logoUrl"]; got != "" {
		t.Fatalf("hero field should clear when its theme asset is removed: %v", got)
	}
}

func TestSessionSaveFailureLeavesDocumentUntouched(t *testing.T) {
	store := &fakeStore{draft: document.Empty(), saveErr: errors.New("network down")}
	s := newTestSession(t, store)

	hero := heroOf(t, s.Document())
	if err := s.UpdateProps(hero.ID, blocks.Props{"title": "Edited"}); err != nil {
		t.Fatalf("update props: %v", err)
	}

	before, _ := document.Marshal(s.Document())
	if err := s.SaveDraft(context.Background()); err == nil {
		t.Fatal("expected save failure")
	}
	after, _ := document.Marshal(s.Document())

	if string(before) != string(after) {
		t.Fatal("failed save must leave the live document unchanged")
	}
}

func TestSessionResetRestoresSkeleton(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})
	if err := s.AddBlock(blocks.TypeVideo, 1); err != nil {
		t.Fatalf("add block: %v", err)
	}

	s.Reset()

	// 重置后的内存文档必须就是归一化骨架，和保存落库的结果一致。
	got := s.Document()
	if len(got.Blocks) != 2 {
		t.Fatalf("reset document has %d blocks, want Hero+Footer", len(got.Blocks))
	}
	if got.Blocks[0].Type != blocks.TypeHero || got.Blocks[1].Type != blocks.TypeFooter {
		t.Fatalf("reset document is %s/%s, want Hero/Footer", got.Blocks[0].Type, got.Blocks[1].Type)
	}
}

func TestSessionReplaceDocumentRejectsGarbage(t *testing.T) {
	s := newTestSession(t, &fakeStore{draft: document.Empty()})
	before, _ := document.Marshal(s.Document())

	for _, raw := range [][]byte{nil, []byte("[]"), []byte("not json"), []byte(`"str"`)} {
		if err := s.ReplaceDocument(raw); !errors.Is(err, ErrCorrupted) {
			t.Fatalf("expected ErrCorrupted for %q, got %v", raw, err)
		}
	}

	after, _ := document.Marshal(s.Document())
	if string(before) != string(after) {
		t.Fatal("rejected replace must not touch the live document")
	}
}

func TestSessionPublishDelegatesWithoutImplicitSave(t *testing.T) {
	store := &fakeStore{draft: document.Empty()}
	s := newTestSession(t, store)

	if err := s.Publish(context.Background()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if store.pubs != 1 {
		t.Fatalf("expected one publish call, got %d", store.pubs)
	}
	if len(store.saved) != 0 {
		t.Fatal("publish must not implicitly save the in-memory document")
	}
}
