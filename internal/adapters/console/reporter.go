package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/usecase"
)

// Reporter prints file outcomes. Success lines and error counts go to out,
// failure headers and messages go to errOut.
type Reporter struct {
	out      io.Writer
	errOut   io.Writer
	renderer *usecase.Renderer
	success  *color.Color
	failure  *color.Color
}

func NewReporter(out, errOut io.Writer, renderer *usecase.Renderer, colored bool) *Reporter {
	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed)
	if colored {
		success.EnableColor()
		failure.EnableColor()
	} else {
		success.DisableColor()
		failure.DisableColor()
	}
	return &Reporter{out: out, errOut: errOut, renderer: renderer, success: success, failure: failure}
}

// ColorSupported reports whether f is a terminal and NO_COLOR is unset.
func ColorSupported(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Reporter) FileValid(path string) {
	if r.renderer.Verbose() {
		fmt.Fprintln(r.out, r.success.Sprint("[success] Validated "+path))
		return
	}
	fmt.Fprintln(r.out, "Validated "+path)
}

func (r *Reporter) FileInvalid(path string, errs domain.ValidationResult) {
	fmt.Fprintln(r.errOut, "Errors for "+path)
	for _, e := range errs {
		line := r.renderer.Render(e)
		if r.renderer.Verbose() {
			line = r.failure.Sprint(line)
		}
		fmt.Fprintln(r.errOut, line)
	}

	count := countLine(errs.Count())
	if r.renderer.Verbose() {
		fmt.Fprintln(r.out, r.failure.Sprint("[error] "+count))
	} else {
		fmt.Fprintln(r.out, count)
	}
	fmt.Fprintln(r.out)
}

func countLine(n int) string {
	if n == 1 {
		return "Found 1 error"
	}
	return fmt.Sprintf("Found %d errors", n)
}
