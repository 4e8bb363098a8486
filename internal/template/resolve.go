package template

import "strings"

// Render substitutes every {variable[.suffix]} placeholder in tmpl from
// ctx. Unresolved placeholders render as empty strings and come back in the
// second return for run reporting. Literal braces with no valid placeholder
// inside pass through untouched.
func Render(tmpl string, ctx *Context) (string, []string) {
	var b strings.Builder
	b.Grow(len(tmpl))
	var unresolved []string

	for i := 0; i < len(tmpl); {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i
		b.WriteString(tmpl[i:open])

		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl[open:])
			break
		}
		close += open

		ph := tmpl[open+1 : close]
		name, suffix, ok := parsePlaceholder(ph)
		if !ok {
			// Not a placeholder shape; keep the braces literal.
			b.WriteString(tmpl[open : close+1])
			i = close + 1
			continue
		}

		if v, ok := ctx.variable(name, suffix); ok {
			b.WriteString(v)
		} else {
			unresolved = append(unresolved, ph)
		}
		i = close + 1
	}

	return collapseSpaces(b.String()), unresolved
}

// parsePlaceholder splits "variable.suffix" and validates the shape:
// lowercase words and underscores, optional .next/.last suffix.
func parsePlaceholder(ph string) (name, suffix string, ok bool) {
	if ph == "" {
		return "", "", false
	}
	name = ph
	if i := strings.LastIndexByte(ph, '.'); i >= 0 {
		name, suffix = ph[:i], ph[i+1:]
		if suffix != "next" && suffix != "last" {
			return "", "", false
		}
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", "", false
		}
	}
	return name, suffix, true
}

// collapseSpaces tidies the holes empty substitutions leave behind.
func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
