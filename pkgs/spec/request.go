package spec

import (
	"fmt"
	"strings"
)

// Request is a parsed requirement string in the recipe declaration
// syntax, e.g. "hdf5@1.10.7~cxx+hl+mpi build_type=Release". Unlike a
// Constraint it carries the package name and is used to apply variant
// requests onto a dependency spec being resolved.
type Request struct {
	Name    string
	Range   string // version range, without the leading '@'
	Enable  []string
	Disable []string
	Values  map[string]string
}

// ParseRequest parses a requirement string. The first field holds the
// package name optionally decorated with a version range and boolean
// variant requests; the remaining fields hold further decorations.
func ParseRequest(s string) (Request, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("request: empty requirement")
	}

	req := Request{Values: make(map[string]string)}

	head := fields[0]
	cut := strings.IndexAny(head, "@+~")
	if cut < 0 {
		req.Name = head
	} else {
		req.Name = head[:cut]
		if err := req.applyDecorations(head[cut:]); err != nil {
			return Request{}, err
		}
	}
	if req.Name == "" {
		return Request{}, fmt.Errorf("request: missing package name in %q", s)
	}

	for _, field := range fields[1:] {
		if strings.HasPrefix(field, "+") || strings.HasPrefix(field, "~") || strings.HasPrefix(field, "@") {
			if err := req.applyDecorations(field); err != nil {
				return Request{}, err
			}
			continue
		}
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return Request{}, fmt.Errorf("request: cannot parse %q in %q", field, s)
		}
		req.Values[name] = value
	}
	return req, nil
}

// applyDecorations consumes a run of "@range", "+name" and "~name"
// decorations packed into a single token.
func (r *Request) applyDecorations(s string) error {
	for s != "" {
		marker := s[0]
		rest := s[1:]
		end := strings.IndexAny(rest, "@+~")
		var part string
		if end < 0 {
			part, s = rest, ""
		} else {
			part, s = rest[:end], rest[end:]
		}
		if part == "" {
			return fmt.Errorf("request: dangling %q decoration", string(marker))
		}
		switch marker {
		case '@':
			r.Range = part
		case '+':
			r.Enable = append(r.Enable, part)
		case '~':
			r.Disable = append(r.Disable, part)
		}
	}
	return nil
}

// Apply sets the requested variant values on the spec.
func (r Request) Apply(s *Spec) {
	for _, name := range r.Enable {
		s.SetVariant(name, "on")
	}
	for _, name := range r.Disable {
		s.SetVariant(name, "off")
	}
	for name, value := range r.Values {
		s.SetVariant(name, value)
	}
}

// Matches reports whether a resolved spec satisfies the request.
func (r Request) Matches(s *Spec) bool {
	if s.Name != r.Name {
		return false
	}
	if r.Range != "" {
		lo, hi, isRange := strings.Cut(r.Range, ":")
		if !isRange {
			hi = lo
		}
		if !versionInRange(s.Version, lo, hi) {
			return false
		}
	}
	for _, name := range r.Enable {
		if !s.VariantEnabled(name) {
			return false
		}
	}
	for _, name := range r.Disable {
		if s.Variant(name) != "off" {
			return false
		}
	}
	for name, value := range r.Values {
		if !s.VariantContains(name, value) {
			return false
		}
	}
	return true
}
