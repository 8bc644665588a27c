// Package schema compiles the embedded JSON Schema documents into a catalog
// of validators, one per content type schema name.
package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	baseURL    = "packlint:///"
	schemaDir  = "schemas"
	sharedDefs = "defs"
	schemaExt  = ".json"
)

// Loader compiles every schema document below schemas/. Documents may
// reference each other by file name.
type Loader struct {
	fsys fs.FS
}

func NewLoader() *Loader {
	return &Loader{fsys: schemaFS}
}

// NewLoaderFS compiles the documents found in fsys under schemas/.
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// Load compiles all schemas against collections. A schema naming a
// collection that is not registered fails with domain.ErrUnknownCollection.
func (l *Loader) Load(collections *domain.Collections) (ports.SchemaCatalog, error) {
	entries, err := fs.ReadDir(l.fsys, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	ext := &collectionCompiler{collections: collections}
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	compiler.RegisterExtension(collectionKeyword, collectionMeta, ext)

	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != schemaExt {
			continue
		}
		data, err := fs.ReadFile(l.fsys, path.Join(schemaDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(baseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), schemaExt)
		if name != sharedDefs {
			names = append(names, name)
		}
	}

	catalog := &Catalog{schemas: make(map[string]*Schema, len(names))}
	for _, name := range names {
		compiled, err := compiler.Compile(baseURL + name + schemaExt)
		if err != nil {
			if missing := ext.unknown(); len(missing) > 0 {
				return nil, fmt.Errorf("compile schema %s: %w: %s", name, domain.ErrUnknownCollection, strings.Join(missing, ", "))
			}
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		catalog.schemas[name] = &Schema{name: name, compiled: compiled}
	}
	return catalog, nil
}

type Catalog struct {
	schemas map[string]*Schema
}

func (c *Catalog) Get(name string) (ports.Schema, error) {
	s, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSchema, name)
	}
	return s, nil
}

// Schema is a compiled document. It is safe for concurrent use.
type Schema struct {
	name     string
	compiled *santhosh.Schema
}

func (s *Schema) Name() string { return s.name }

// Validate collects every leaf violation of data; it never stops at the first.
func (s *Schema) Validate(data any) domain.ValidationResult {
	err := s.compiled.Validate(data)
	if err == nil {
		return nil
	}
	var ve *santhosh.ValidationError
	if !errors.As(err, &ve) {
		return domain.ValidationResult{domain.NewValidationError(data, nil, keySchema, err.Error())}
	}

	var out domain.ValidationResult
	seen := make(map[string]struct{})
	for _, leaf := range leaves(ve) {
		id := leaf.InstanceLocation + "\x00" + leaf.Message
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, translate(data, leaf))
	}
	return out
}

// leaves flattens the cause tree, keeping only errors without causes.
func leaves(ve *santhosh.ValidationError) []*santhosh.ValidationError {
	if len(ve.Causes) == 0 {
		return []*santhosh.ValidationError{ve}
	}
	var out []*santhosh.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leaves(cause)...)
	}
	if merged := mergeTypeBranches(ve, out); merged != nil {
		return []*santhosh.ValidationError{merged}
	}
	return out
}

// mergeTypeBranches folds an anyOf or oneOf whose branches all failed on type
// at the same location into one type error listing every accepted type.
func mergeTypeBranches(ve *santhosh.ValidationError, branches []*santhosh.ValidationError) *santhosh.ValidationError {
	switch lastSegment(ve.KeywordLocation) {
	case "anyOf", "oneOf":
	default:
		return nil
	}
	if len(branches) < 2 {
		return nil
	}
	typeRule := rules["type"]
	var expected []string
	var got string
	for _, leaf := range branches {
		if lastSegment(leaf.KeywordLocation) != "type" || leaf.InstanceLocation != ve.InstanceLocation {
			return nil
		}
		m := typeRule.pattern.FindStringSubmatch(leaf.Message)
		if m == nil {
			return nil
		}
		for _, t := range strings.Split(m[1], " or ") {
			if !slices.Contains(expected, t) {
				expected = append(expected, t)
			}
		}
		got = m[2]
	}
	return &santhosh.ValidationError{
		KeywordLocation:         ve.KeywordLocation + "/type",
		AbsoluteKeywordLocation: ve.AbsoluteKeywordLocation,
		InstanceLocation:        ve.InstanceLocation,
		Message:                 fmt.Sprintf("expected %s, but got %s", strings.Join(expected, " or "), got),
	}
}
