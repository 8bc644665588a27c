package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

var (
	utf8BOM          = []byte{0xEF, 0xBB, 0xBF}
	errEmptyDocument = errors.New("empty document")
)

// ValidateFile reads path, parses it as JSON and validates it against schema.
// Read and parse failures are reported as a single error for this file only.
func ValidateFile(schema ports.Schema, path string) domain.ValidationResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ValidationResult{domain.NewFileError(domain.KeyReadError, err.Error())}
	}
	data, err := ParseJSON(content)
	if err != nil {
		return domain.ValidationResult{parseFailure(err)}
	}
	return schema.Validate(data)
}

// ParseJSON decodes exactly one JSON value. Numbers are kept as json.Number.
func ParseJSON(content []byte) (any, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyDocument
		}
		return nil, newParseError(content, err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, newParseError(content, err)
	}
	return v, nil
}

func ensureEOF(decoder *json.Decoder) error {
	var extra any
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return errors.New("unexpected data after top-level value")
}

func newParseError(content []byte, err error) *domain.ParseError {
	pe := &domain.ParseError{Err: err}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		pe.Line, pe.Column = lineColumn(content, syntaxErr.Offset)
	}
	return pe
}

func lineColumn(content []byte, offset int64) (int, int) {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	head := content[:offset]
	line := bytes.Count(head, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(head, '\n')
	return line, col
}

func parseFailure(err error) domain.ValidationError {
	var pe *domain.ParseError
	if errors.As(err, &pe) && pe.Line > 0 {
		return domain.NewFileError(domain.KeyParseAt, pe.Err.Error(), pe.Line, pe.Column)
	}
	return domain.NewFileError(domain.KeyParseError, err.Error())
}
