package ports

import "github.com/atvirokodosprendimai/packlint/internal/core/domain"

// Schema checks one parsed document and reports every violation it finds.
type Schema interface {
	Validate(data any) domain.ValidationResult
}

type SchemaCatalog interface {
	Get(name string) (Schema, error)
}

// SchemaLoader builds a catalog whose schemas capture the given collections.
type SchemaLoader interface {
	Load(collections *domain.Collections) (SchemaCatalog, error)
}
