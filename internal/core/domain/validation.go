package domain

import (
	"strconv"
	"strings"
)

type StepKind int

const (
	FieldStep StepKind = iota
	IndexStep
)

// PathStep is one navigation step: a field of an object or an element of an array.
type PathStep struct {
	Kind  StepKind
	Field string
	Index int
}

// Path addresses a location inside a parsed JSON document.
type Path []PathStep

func Field(name string) PathStep { return PathStep{Kind: FieldStep, Field: name} }

func Index(i int) PathStep { return PathStep{Kind: IndexStep, Index: i} }

// Get resolves the path against root. The boolean is false when a step does
// not exist in the document.
func (p Path) Get(root any) (any, bool) {
	cur := root
	for _, step := range p {
		switch step.Kind {
		case FieldStep:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := obj[step.Field]
			if !ok {
				return nil, false
			}
			cur = next
		case IndexStep:
			arr, ok := cur.([]any)
			if !ok || step.Index < 0 || step.Index >= len(arr) {
				return nil, false
			}
			cur = arr[step.Index]
		}
	}
	return cur, true
}

func plainField(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// String renders the path as "$.pools[0].entries". Field names that are not
// plain identifiers are quoted in brackets.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")
	for _, step := range p {
		switch step.Kind {
		case FieldStep:
			if plainField(step.Field) {
				b.WriteString(".")
				b.WriteString(step.Field)
			} else {
				b.WriteString("[")
				b.WriteString(strconv.Quote(step.Field))
				b.WriteString("]")
			}
		case IndexStep:
			b.WriteString("[")
			b.WriteString(strconv.Itoa(step.Index))
			b.WriteString("]")
		}
	}
	return b.String()
}

// PathFromPointer converts a JSON pointer (RFC 6901) into a Path. Tokens are
// typed by walking root, so a numeric token selects an index only when the
// value at that point is an array.
func PathFromPointer(root any, pointer string) Path {
	if pointer == "" {
		return Path{}
	}
	tokens := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	path := make(Path, 0, len(tokens))
	cur := root
	for _, raw := range tokens {
		tok := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		if arr, ok := cur.([]any); ok {
			if i, err := strconv.Atoi(tok); err == nil {
				path = append(path, Index(i))
				if i >= 0 && i < len(arr) {
					cur = arr[i]
				} else {
					cur = nil
				}
				continue
			}
		}
		path = append(path, Field(tok))
		if obj, ok := cur.(map[string]any); ok {
			cur = obj[tok]
		} else {
			cur = nil
		}
	}
	return path
}

// ValidationError is one located, keyed violation inside a single file.
// A nil entry in Params is an absent parameter.
type ValidationError struct {
	Path   Path
	Key    string
	Params []any

	root   any
	hasDoc bool
}

// NewValidationError locates an error inside a parsed document. root may be
// nil when the document itself is JSON null.
func NewValidationError(root any, path Path, key string, params ...any) ValidationError {
	return ValidationError{Path: path, Key: key, Params: params, root: root, hasDoc: true}
}

// NewFileError reports a file that never produced a document, such as a read
// or parse failure.
func NewFileError(key string, params ...any) ValidationError {
	return ValidationError{Key: key, Params: params}
}

// Value returns the offending value from the document the error was raised on.
func (e ValidationError) Value() (any, bool) {
	if !e.hasDoc {
		return nil, false
	}
	return e.Path.Get(e.root)
}

// ValidationResult holds the errors found in one file.
type ValidationResult []ValidationError

func (r ValidationResult) Count() int { return len(r) }

func (r ValidationResult) Valid() bool { return len(r) == 0 }
