package schema

import (
	"regexp"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

// keySchema is used when a library message has no translation rule.
const keySchema = "error.schema"

// rule maps a failed keyword to an error key. The pattern extracts the
// positional parameters from the library message.
type rule struct {
	key     string
	pattern *regexp.Regexp
}

var rules = map[string]rule{
	"type":                 {"error.type", regexp.MustCompile(`^expected (.+), but got (.+)$`)},
	"required":             {"error.required", regexp.MustCompile(`^missing properties: (.+)$`)},
	"additionalProperties": {"error.additional_properties", regexp.MustCompile(`^additionalProperties (.+) not allowed$`)},
	"enum":                 {"error.enum", regexp.MustCompile(`^value must be (?:one of )?(.+)$`)},
	"const":                {"error.const", regexp.MustCompile(`^value must be (.+)$`)},
	"pattern":              {"error.pattern", regexp.MustCompile(`^does not match pattern (.+)$`)},
	"minItems":             {"error.min_items", regexp.MustCompile(`^minimum (\d+) items required, but found (\d+) items$`)},
	"maxItems":             {"error.max_items", regexp.MustCompile(`^maximum (\d+) items required, but found (\d+) items$`)},
	"minLength":            {"error.min_length", regexp.MustCompile(`^length must be >= (\d+), but got (\d+)$`)},
	"maxLength":            {"error.max_length", regexp.MustCompile(`^length must be <= (\d+), but got (\d+)$`)},
	"minProperties":        {"error.min_properties", regexp.MustCompile(`^minimum (\d+) properties allowed, but found (\d+) properties$`)},
	"minimum":              {"error.minimum", regexp.MustCompile(`^must be >= (\S+) but found (\S+)$`)},
	"exclusiveMinimum":     {"error.exclusive_minimum", regexp.MustCompile(`^must be > (\S+) but found (\S+)$`)},
	"maximum":              {"error.maximum", regexp.MustCompile(`^must be <= (\S+) but found (\S+)$`)},
	"exclusiveMaximum":     {"error.exclusive_maximum", regexp.MustCompile(`^must be < (\S+) but found (\S+)$`)},
	collectionKeyword:      {"error.unknown_member", regexp.MustCompile(`^"(.*)" is not a member of (.+)$`)},
}

// translate turns one leaf library error into a keyed domain error located
// in data.
func translate(data any, leaf *santhosh.ValidationError) domain.ValidationError {
	path := domain.PathFromPointer(data, leaf.InstanceLocation)
	keyword := lastSegment(leaf.KeywordLocation)

	if r, ok := rules[keyword]; ok {
		if m := r.pattern.FindStringSubmatch(leaf.Message); m != nil {
			params := make([]any, len(m)-1)
			for i, p := range m[1:] {
				params[i] = p
			}
			return domain.NewValidationError(data, path, r.key, params...)
		}
	}
	return domain.NewValidationError(data, path, keySchema, leaf.Message)
}

func lastSegment(location string) string {
	if i := strings.LastIndexByte(location, '/'); i >= 0 {
		return location[i+1:]
	}
	return location
}
