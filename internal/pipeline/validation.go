package pipeline

import (
	"regexp"
	"strings"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// builtinValidationCalls match the schema-validation idioms common in
// JS/TS codebases (zod, joi, yup, class-validator).
var builtinValidationCalls = []string{
	".parse(", ".parseAsync(", ".safeParse(", ".validate(", ".validateSync(",
	".validateAsync(", ".isValid(", ".assert(",
}

// ValidationDetector marks parameters that flow through a validation call
// inside the declaring function's body. Detection is textual and pluggable:
// config patterns extend the built-in call list.
type ValidationDetector struct {
	calls    []string
	patterns []*regexp.Regexp
}

// NewValidationDetector compiles the extra patterns from config. Invalid
// patterns are skipped; the built-ins always apply.
func NewValidationDetector(extra []string) *ValidationDetector {
	d := &ValidationDetector{calls: builtinValidationCalls}
	for _, p := range extra {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		d.patterns = append(d.patterns, re)
	}
	return d
}

// MarkValidated flips Validated on each param whose name appears inside a
// validation call's argument list, or that matches a configured pattern
// hit anywhere in the body.
func (d *ValidationDetector) MarkValidated(body string, params []graph.Param) {
	for i := range params {
		name := bareParamName(params[i].Name)
		if name == "" {
			continue
		}
		if d.validatedInBody(body, name) {
			params[i].Validated = true
		}
	}
}

func (d *ValidationDetector) validatedInBody(body, name string) bool {
	for _, call := range d.calls {
		idx := 0
		for {
			pos := strings.Index(body[idx:], call)
			if pos < 0 {
				break
			}
			argStart := idx + pos + len(call)
			if argsMention(body[argStart:], name) {
				return true
			}
			idx = argStart
		}
	}
	for _, re := range d.patterns {
		if loc := re.FindStringIndex(body); loc != nil {
			if strings.Contains(body[loc[0]:min(loc[1]+64, len(body))], name) {
				return true
			}
		}
	}
	return false
}

// argsMention checks the argument text up to the closing paren of the
// current call for the parameter name as a standalone identifier.
func argsMention(rest, name string) bool {
	depth := 1
	end := len(rest)
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if depth == 0 {
			break
		}
	}
	args := rest[:end]
	idx := 0
	for {
		pos := strings.Index(args[idx:], name)
		if pos < 0 {
			return false
		}
		start := idx + pos
		before := byte(' ')
		if start > 0 {
			before = args[start-1]
		}
		afterIdx := start + len(name)
		after := byte(' ')
		if afterIdx < len(args) {
			after = args[afterIdx]
		}
		if !isIdentByte(before) && !isIdentByte(after) {
			return true
		}
		idx = afterIdx
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// bareParamName strips destructuring braces and default clauses so an
// object-pattern param still yields something matchable.
func bareParamName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "...")
	if strings.HasPrefix(name, "{") || strings.HasPrefix(name, "[") {
		return ""
	}
	if idx := strings.IndexAny(name, " =:"); idx >= 0 {
		name = name[:idx]
	}
	return name
}
