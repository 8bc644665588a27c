package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

// Locale is a flat table from error key to message template. Templates refer
// to parameters by position: "Expected %0% but found %1%".
type Locale map[string]string

var placeholderPattern = regexp.MustCompile(`%\d+%`)

// Format looks key up in locale and substitutes params. Unknown keys are used
// as their own template and placeholders without a parameter stay literal.
func Format(locale Locale, key string, params []any) string {
	tmpl, ok := locale[key]
	if !ok {
		tmpl = key
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(params) || params[i] == nil {
			return m
		}
		return stringify(params[i])
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

type Renderer struct {
	locale  Locale
	verbose bool
}

func NewRenderer(locale Locale, verbose bool) *Renderer {
	if locale == nil {
		locale = Locale{}
	}
	return &Renderer{locale: locale, verbose: verbose}
}

func (r *Renderer) Verbose() bool { return r.verbose }

func (r *Renderer) Message(err domain.ValidationError) string {
	return Format(r.locale, err.Key, err.Params)
}

// Render returns the console form of err. Verbose output is a three line block:
//
//	[error] <message>
//	[error] Found <value> at <path>
//	[error]
func (r *Renderer) Render(err domain.ValidationError) string {
	msg := r.Message(err)
	if !r.verbose {
		return msg
	}
	found := "<missing>"
	if raw := EncodeValue(err); raw != nil {
		found = string(raw)
	}
	var b strings.Builder
	b.WriteString("[error] ")
	b.WriteString(msg)
	b.WriteString("\n[error] Found ")
	b.WriteString(found)
	b.WriteString(" at ")
	b.WriteString(err.Path.String())
	b.WriteString("\n[error]")
	return b.String()
}

// Entry converts err into its stored form.
func (r *Renderer) Entry(err domain.ValidationError) domain.ErrorEntry {
	params := make([]string, len(err.Params))
	for i, p := range err.Params {
		if p != nil {
			params[i] = stringify(p)
		}
	}
	return domain.ErrorEntry{
		Path:    err.Path.String(),
		Key:     err.Key,
		Params:  params,
		Message: r.Message(err),
		Value:   EncodeValue(err),
	}
}

// EncodeValue marshals the offending value, or returns nil when the path does
// not resolve.
func EncodeValue(err domain.ValidationError) json.RawMessage {
	v, ok := err.Value()
	if !ok {
		return nil
	}
	raw, mErr := json.Marshal(v)
	if mErr != nil {
		return nil
	}
	return raw
}
