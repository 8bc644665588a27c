package domain

const (
	DefaultExtension  = "json"
	ReservedNamespace = "minecraft"
)

// ContentType binds a directory below a namespace to the schema its files use.
type ContentType struct {
	Path      string
	Schema    string
	Extension string
}

func (c ContentType) Ext() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}

var contentTypes = []ContentType{
	{Path: "advancements", Schema: "advancement"},
	{Path: "loot_tables", Schema: "loot_table"},
	{Path: "predicates", Schema: "predicate"},
	{Path: "recipes", Schema: "recipe"},
	{Path: "tags/blocks", Schema: "block_tag"},
	{Path: "tags/entity_types", Schema: "entity_type_tag"},
	{Path: "tags/fluids", Schema: "fluid_tag"},
	{Path: "tags/functions", Schema: "function_tag"},
	{Path: "tags/items", Schema: "item_tag"},
	{Path: "dimension", Schema: "dimension"},
	{Path: "dimension_type", Schema: "dimension_type"},
	{Path: "worldgen/biome", Schema: "biome"},
	{Path: "worldgen/configured_carver", Schema: "configured_carver"},
	{Path: "worldgen/configured_feature", Schema: "configured_feature"},
	{Path: "worldgen/configured_structure_feature", Schema: "configured_structure_feature"},
	{Path: "worldgen/configured_surface_builder", Schema: "configured_surface_builder"},
	{Path: "worldgen/noise_settings", Schema: "noise_settings"},
	{Path: "worldgen/processor_list", Schema: "processor_list"},
	{Path: "worldgen/template_pool", Schema: "template_pool"},
}

// ContentTypes returns the fixed catalog in traversal order.
func ContentTypes() []ContentType {
	out := make([]ContentType, len(contentTypes))
	copy(out, contentTypes)
	return out
}

// Collections every pack run registers before items are loaded.
var EmptyCollections = []string{
	"loot_condition_type",
	"loot_function_type",
	"worldgen/structure_feature",
}

const ItemCollection = "item"
