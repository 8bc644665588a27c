package schema

import (
	"slices"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

// collectionKeyword restricts a string to the members of a named collection:
//
//	{"type": "string", "collection": "item"}
const collectionKeyword = "collection"

const defaultNamespace = "minecraft:"

var collectionMeta = santhosh.MustCompileString("collection.json", `{
	"properties": {
		"collection": {"type": "string"}
	}
}`)

// collectionCompiler snapshots collection members when a schema using the
// keyword is compiled.
type collectionCompiler struct {
	collections *domain.Collections
	missing     []string
}

func (c *collectionCompiler) Compile(_ santhosh.CompilerContext, m map[string]interface{}) (santhosh.ExtSchema, error) {
	raw, ok := m[collectionKeyword]
	if !ok {
		return nil, nil
	}
	name, _ := raw.(string)
	members, err := c.collections.Get(name)
	if err != nil {
		if !slices.Contains(c.missing, name) {
			c.missing = append(c.missing, name)
		}
		return nil, err
	}
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		set[normalizeID(member)] = struct{}{}
	}
	return collectionSchema{name: name, members: set}, nil
}

func (c *collectionCompiler) unknown() []string {
	return c.missing
}

type collectionSchema struct {
	name    string
	members map[string]struct{}
}

// Validate accepts anything that is not a string, leaving that to "type". An
// empty collection accepts every identifier.
func (s collectionSchema) Validate(ctx santhosh.ValidationContext, v interface{}) error {
	id, ok := v.(string)
	if !ok || len(s.members) == 0 {
		return nil
	}
	if _, ok := s.members[normalizeID(id)]; ok {
		return nil
	}
	return ctx.Error(collectionKeyword, "%q is not a member of %s", id, s.name)
}

func normalizeID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), defaultNamespace)
}
