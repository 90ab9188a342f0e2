package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

// Param maps one synthetic parameter name to the path it was parsed from.
type Param struct {
	Name string
	Path string
}

// Model is the parsed form of an expression template.
//
// A Model is immutable after Parse and may be shared across evaluations.
type Model struct {
	// Template is the original text.
	Template string

	// Query is Template with every ${path} replaced by ":<param>".
	Query string

	// Params lists the synthetic parameters in order of first occurrence.
	// Names are unique and each maps to exactly one path.
	Params []Param
}

// Parse scans template left to right and replaces property tokens.
//
// Identical paths share one parameter. An empty template yields an empty
// Model. Returns *ir.ExpressionSyntaxError for an unterminated "${" or an
// empty token.
func Parse(template string) (*Model, error) {
	m := &Model{Template: template}
	if !strings.Contains(template, "${") {
		m.Query = template
		return m, nil
	}

	byPath := make(map[string]string)
	var out strings.Builder
	out.Grow(len(template))

	i := 0
	for i < len(template) {
		start := strings.Index(template[i:], "${")
		if start == -1 {
			out.WriteString(template[i:])
			break
		}
		start += i
		out.WriteString(template[i:start])

		end := strings.IndexByte(template[start+2:], '}')
		if end == -1 {
			return nil, &ir.ExpressionSyntaxError{
				Template: template,
				Offset:   start,
				Message:  "unterminated ${",
			}
		}
		end += start + 2

		path := strings.TrimSpace(template[start+2 : end])
		if path == "" {
			return nil, &ir.ExpressionSyntaxError{
				Template: template,
				Offset:   start,
				Message:  "empty property reference",
			}
		}
		if err := checkPath(path); err != nil {
			return nil, &ir.ExpressionSyntaxError{
				Template: template,
				Offset:   start,
				Message:  err.Error(),
			}
		}

		name, seen := byPath[path]
		if !seen {
			name = fmt.Sprintf("p%d", len(m.Params))
			byPath[path] = name
			m.Params = append(m.Params, Param{Name: name, Path: path})
		}
		out.WriteByte(':')
		out.WriteString(name)

		i = end + 1
	}

	m.Query = out.String()
	return m, nil
}

// checkPath rejects anything that is not a dot-separated list of identifiers.
// Expressions are property paths only, not a scripting language.
func checkPath(path string) error {
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return fmt.Errorf("empty segment in path %q", path)
		}
		for j, r := range seg {
			isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			isDigit := r >= '0' && r <= '9'
			if !isLetter && !(isDigit && j > 0) {
				return fmt.Errorf("invalid character %q in path %q", r, path)
			}
		}
	}
	return nil
}

// Parameters returns the parameter -> path mapping.
func (m *Model) Parameters() map[string]string {
	out := make(map[string]string, len(m.Params))
	for _, p := range m.Params {
		out[p.Name] = p.Path
	}
	return out
}

// Bind resolves every parameter path against instance.
//
// Binding is deterministic: identical instance state yields identical maps.
// Returns *ir.PropertyResolutionError when instance is nil or a path
// segment cannot be resolved.
func (m *Model) Bind(instance any) (map[string]any, error) {
	bound := make(map[string]any, len(m.Params))
	if len(m.Params) == 0 {
		return bound, nil
	}
	if isNil(instance) {
		return nil, &ir.PropertyResolutionError{Entity: EntityName(instance), Path: m.Params[0].Path}
	}
	for _, p := range m.Params {
		v, err := Resolve(instance, p.Path)
		if err != nil {
			return nil, err
		}
		bound[p.Name] = v
	}
	return bound, nil
}
