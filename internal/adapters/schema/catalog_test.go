package schema

import (
	"errors"
	"testing"
	"testing/fstest"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
	"github.com/atvirokodosprendimai/packlint/internal/core/usecase"
)

func packCollections(items ...string) *domain.Collections {
	c := domain.NewCollections()
	for _, name := range domain.EmptyCollections {
		c.Register(name, nil)
	}
	c.Register(domain.ItemCollection, items)
	return c
}

func mustLoad(t *testing.T, l *Loader, c *domain.Collections) ports.SchemaCatalog {
	t.Helper()
	catalog, err := l.Load(c)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return catalog
}

func validate(t *testing.T, s ports.Schema, doc string) domain.ValidationResult {
	t.Helper()
	data, err := usecase.ParseJSON([]byte(doc))
	if err != nil {
		t.Fatalf("parse %s: %v", doc, err)
	}
	return s.Validate(data)
}

func mustGet(t *testing.T, c ports.SchemaCatalog, name string) ports.Schema {
	t.Helper()
	s, err := c.Get(name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return s
}

func TestLoaderCompilesEveryContentTypeSchema(t *testing.T) {
	catalog := mustLoad(t, NewLoader(), packCollections())
	for _, ct := range domain.ContentTypes() {
		if _, err := catalog.Get(ct.Schema); err != nil {
			t.Fatalf("schema for %s: %v", ct.Path, err)
		}
	}
	if _, err := catalog.Get("defs"); !errors.Is(err, domain.ErrUnknownSchema) {
		t.Fatalf("shared definitions must not be a catalog entry, got %v", err)
	}
	if _, err := catalog.Get("nope"); !errors.Is(err, domain.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestLoaderUnknownCollection(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/thing.json": {Data: []byte(`{"type":"string","collection":"biome"}`)},
	}
	_, err := NewLoaderFS(fsys).Load(domain.NewCollections())
	if !errors.Is(err, domain.ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestCollectionKeywordMembership(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/list.json": {Data: []byte(`{"type":"array","items":{"type":"string","collection":"item"}}`)},
	}
	catalog := mustLoad(t, NewLoaderFS(fsys), packCollections("minecraft:stone", "dirt"))
	s := mustGet(t, catalog, "list")

	res := validate(t, s, `["stone", "minecraft:dirt", "minecraft:diamond", "emerald"]`)
	if res.Count() != 2 {
		t.Fatalf("expected 2 errors, got %d: %+v", res.Count(), res)
	}
	first := res[0]
	if first.Key != "error.unknown_member" {
		t.Fatalf("unexpected key: %s", first.Key)
	}
	if first.Path.String() != "$[2]" && first.Path.String() != "$[3]" {
		t.Fatalf("unexpected path: %s", first.Path)
	}
	if len(first.Params) != 2 || first.Params[1] != "item" {
		t.Fatalf("unexpected params: %v", first.Params)
	}
}

func TestEmptyCollectionAcceptsAnyIdentifier(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/list.json": {Data: []byte(`{"type":"array","items":{"type":"string","collection":"item"}}`)},
	}
	s := mustGet(t, mustLoad(t, NewLoaderFS(fsys), packCollections()), "list")
	if res := validate(t, s, `["anything", "minecraft:whatever"]`); !res.Valid() {
		t.Fatalf("expected empty collection to accept all, got %+v", res)
	}
}

func TestLootTableSchema(t *testing.T) {
	catalog := mustLoad(t, NewLoader(), packCollections("minecraft:stone"))
	s := mustGet(t, catalog, "loot_table")

	valid := `{
		"type": "minecraft:block",
		"pools": [{
			"rolls": 1,
			"entries": [{"type": "minecraft:item", "name": "minecraft:stone"}],
			"conditions": [{"condition": "minecraft:survives_explosion"}]
		}]
	}`
	if res := validate(t, s, valid); !res.Valid() {
		t.Fatalf("expected valid loot table, got %+v", res)
	}

	res := validate(t, s, `{"pools": "x"}`)
	if res.Valid() {
		t.Fatal("expected errors for a non-array pools value")
	}
	if got := res[0].Path.String(); got != "$.pools" {
		t.Fatalf("unexpected path: %s", got)
	}

	res = validate(t, s, `{"pools": [{"rolls": 1, "entries": [{"type": "item", "name": "minecraft:diamond"}]}]}`)
	if res.Count() != 1 {
		t.Fatalf("expected one error, got %+v", res)
	}
	if res[0].Key != "error.unknown_member" || res[0].Path.String() != "$.pools[0].entries[0].name" {
		t.Fatalf("unexpected error: key=%s path=%s", res[0].Key, res[0].Path)
	}
}

func TestAlternativeTypesCollapseIntoOneError(t *testing.T) {
	catalog := mustLoad(t, NewLoader(), packCollections("minecraft:stone"))
	s := mustGet(t, catalog, "loot_table")

	res := validate(t, s, `{"pools": [{"rolls": "x", "entries": [{"type": "minecraft:item", "name": "minecraft:stone"}]}]}`)
	if res.Count() != 1 {
		t.Fatalf("expected one error for rolls, got %+v", res)
	}
	got := res[0]
	if got.Key != "error.type" || got.Path.String() != "$.pools[0].rolls" {
		t.Fatalf("unexpected error: key=%s path=%s", got.Key, got.Path)
	}
	if len(got.Params) != 2 || got.Params[0] != "number or object" || got.Params[1] != "string" {
		t.Fatalf("unexpected params: %v", got.Params)
	}
}

func TestMergeTypeBranchesKeepsMixedFailures(t *testing.T) {
	anyOf := &santhosh.ValidationError{KeywordLocation: "/properties/rolls/anyOf", InstanceLocation: "/rolls"}
	typeLeaf := &santhosh.ValidationError{
		KeywordLocation:  "/properties/rolls/anyOf/0/type",
		InstanceLocation: "/rolls",
		Message:          "expected number, but got object",
	}
	requiredLeaf := &santhosh.ValidationError{
		KeywordLocation:  "/properties/rolls/anyOf/1/required",
		InstanceLocation: "/rolls",
		Message:          "missing properties: 'min'",
	}
	if merged := mergeTypeBranches(anyOf, []*santhosh.ValidationError{typeLeaf, requiredLeaf}); merged != nil {
		t.Fatalf("expected no merge, got %+v", merged)
	}

	allOf := &santhosh.ValidationError{KeywordLocation: "/allOf", InstanceLocation: "/rolls"}
	if merged := mergeTypeBranches(allOf, []*santhosh.ValidationError{typeLeaf, typeLeaf}); merged != nil {
		t.Fatalf("expected allOf to stay flat, got %+v", merged)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	catalog := mustLoad(t, NewLoader(), packCollections())
	s := mustGet(t, catalog, "loot_table")

	res := validate(t, s, `{"pools": [{"entries": []}, {"rolls": 1}], "extra": true}`)
	if res.Count() < 3 {
		t.Fatalf("expected every violation to be reported, got %d: %+v", res.Count(), res)
	}
}

func TestTranslateKnownKeyword(t *testing.T) {
	data, _ := usecase.ParseJSON([]byte(`{"pools":"x"}`))
	leaf := &santhosh.ValidationError{
		KeywordLocation:  "/properties/pools/type",
		InstanceLocation: "/pools",
		Message:          "expected array, but got string",
	}
	got := translate(data, leaf)
	if got.Key != "error.type" || got.Path.String() != "$.pools" {
		t.Fatalf("unexpected translation: %+v", got)
	}
	if len(got.Params) != 2 || got.Params[0] != "array" || got.Params[1] != "string" {
		t.Fatalf("unexpected params: %v", got.Params)
	}
	v, ok := got.Value()
	if !ok || v != "x" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestTranslateFallsBackToLibraryMessage(t *testing.T) {
	leaf := &santhosh.ValidationError{
		KeywordLocation:  "/propertyNames/format",
		InstanceLocation: "",
		Message:          "something unusual",
	}
	got := translate(map[string]any{}, leaf)
	if got.Key != keySchema || len(got.Params) != 1 || got.Params[0] != "something unusual" {
		t.Fatalf("unexpected fallback: %+v", got)
	}
	if got.Path.String() != "$" {
		t.Fatalf("unexpected path: %s", got.Path)
	}
}

func TestNormalizeID(t *testing.T) {
	if normalizeID("minecraft:stone") != "stone" || normalizeID(" yc:gem ") != "yc:gem" {
		t.Fatal("unexpected normalization")
	}
}
