package ports

import "github.com/atvirokodosprendimai/packlint/internal/core/domain"

// Reporter receives per-file outcomes in traversal order.
type Reporter interface {
	FileValid(path string)
	FileInvalid(path string, errs domain.ValidationResult)
}
