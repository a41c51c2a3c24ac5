package blocks

import (
	"errors"
	"testing"
)

func TestRegistryCatalogIsClosed(t *testing.T) {
	r := NewRegistry()

	known := []Type{TypeHero, TypeBenefits, TypeTeam, TypeJobs, TypeVideo, TypeFooter}
	for _, typ := range known {
		if !r.IsKnown(typ) {
			t.Fatalf("%s should be known", typ)
		}
		if !r.HasRenderer(typ) {
			t.Fatalf("%s should have a renderer", typ)
		}
	}

	for _, typ := range []Type{"Banner", "hero", "", "Jobs2"} {
		if r.IsKnown(typ) {
			t.Fatalf("%q should not be known", typ)
		}
	}

	if got := len(r.KnownTypes()); got != len(known) {
		t.Fatalf("catalog size drifted: %d", got)
	}
}

func TestRegistryPinnedTypesAreLocked(t *testing.T) {
	r := NewRegistry()

	for _, typ := range []Type{TypeHero, TypeFooter} {
		perms := r.Permissions(typ)
		if perms.CanDelete || perms.CanDuplicate {
			t.Fatalf("%s must be neither deletable nor duplicable: %+v", typ, perms)
		}
	}
	for _, typ := range []Type{TypeBenefits, TypeTeam, TypeJobs, TypeVideo} {
		perms := r.Permissions(typ)
		if !perms.CanDelete || !perms.CanDuplicate {
			t.Fatalf("%s should be deletable and duplicable: %+v", typ, perms)
		}
	}
}

func TestRegistryDefaultsMatchSchema(t *testing.T) {
	r := NewRegistry()

	for _, typ := range r.KnownTypes() {
		fields, err := r.Schema(typ)
		if err != nil {
			t.Fatalf("schema %s: %v", typ, err)
		}
		allowed := map[string]bool{}
		for _, f := range fields {
			allowed[f.Name] = true
		}

		for key := range r.DefaultProps(typ) {
			if !allowed[key] {
				t.Fatalf("%s default props carry schema-foreign key %q", typ, key)
			}
		}
	}
}

func TestRegistryCleanPropsDropsForeignKeys(t *testing.T) {
	r := NewRegistry()

	cleaned := r.CleanProps(TypeVideo, Props{
		"heading":  "Watch",
		"videoUrl": "v.mp4",
		"payload":  "<script>",
	})

	if cleaned["heading"] != "Watch" || cleaned["videoUrl"] != "v.mp4" {
		t.Fatalf("schema keys lost: %v", cleaned)
	}
	if _, ok := cleaned["payload"]; ok {
		t.Fatal("foreign key survived CleanProps")
	}
}

func TestRegistrySchemaUnknownType(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Schema("Nope"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := r.Render("Nope", Props{}, RuntimeContext{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType from render, got %v", err)
	}
}
