package spec

import (
	"fmt"
	"strings"

	"github.com/scibuild/scibuild/pkgs/gnu"
)

// Constraint is a conjunction of clauses over a spec: version ranges
// ("@4.4:", "@:4.3", "@1.8:1.12"), boolean variant requests ("+shared",
// "~mpi") and value requests ("exec_space=openmp").
type Constraint struct {
	clauses []clause
}

type clauseKind int

const (
	clauseVersion clauseKind = iota
	clauseEnabled
	clauseDisabled
	clauseValue
)

type clause struct {
	kind clauseKind

	name  string
	value string

	// version range bounds, inclusive; empty means unbounded
	lo, hi string
}

// ParseConstraint parses a whitespace-separated clause list. Boolean
// and version clauses may be packed into a single token, as in
// "@:4.3~mpi". An empty string parses to a constraint that matches
// every spec.
func ParseConstraint(s string) (Constraint, error) {
	var c Constraint
	for _, field := range strings.Fields(s) {
		for _, tok := range splitDecorations(field) {
			cl, err := parseClause(tok)
			if err != nil {
				return Constraint{}, err
			}
			c.clauses = append(c.clauses, cl)
		}
	}
	return c, nil
}

// splitDecorations splits a token like "@:4.3~mpi+hl" at decoration
// markers. Tokens not starting with a marker (name=value clauses) are
// returned unchanged.
func splitDecorations(s string) []string {
	if !strings.HasPrefix(s, "@") && !strings.HasPrefix(s, "+") && !strings.HasPrefix(s, "~") {
		return []string{s}
	}
	var toks []string
	for s != "" {
		end := strings.IndexAny(s[1:], "@+~")
		if end < 0 {
			toks = append(toks, s)
			break
		}
		toks = append(toks, s[:end+1])
		s = s[end+1:]
	}
	return toks
}

func parseClause(tok string) (clause, error) {
	switch {
	case strings.HasPrefix(tok, "@"):
		rng := tok[1:]
		if rng == "" {
			return clause{}, fmt.Errorf("constraint: empty version range %q", tok)
		}
		lo, hi, isRange := strings.Cut(rng, ":")
		if !isRange {
			// exact version prefix match: @4.7 matches 4.7 and 4.7.x
			return clause{kind: clauseVersion, lo: rng, hi: rng}, nil
		}
		return clause{kind: clauseVersion, lo: lo, hi: hi}, nil
	case strings.HasPrefix(tok, "+"), strings.HasPrefix(tok, "~"):
		if tok[1:] == "" {
			return clause{}, fmt.Errorf("constraint: dangling %q", tok)
		}
		if tok[0] == '+' {
			return clause{kind: clauseEnabled, name: tok[1:]}, nil
		}
		return clause{kind: clauseDisabled, name: tok[1:]}, nil
	default:
		name, value, ok := strings.Cut(tok, "=")
		if !ok {
			return clause{}, fmt.Errorf("constraint: cannot parse clause %q", tok)
		}
		return clause{kind: clauseValue, name: name, value: value}, nil
	}
}

// Matches reports whether the spec satisfies every clause.
func (c Constraint) Matches(s *Spec) bool {
	for _, cl := range c.clauses {
		if !cl.matches(s) {
			return false
		}
	}
	return true
}

func (cl clause) matches(s *Spec) bool {
	switch cl.kind {
	case clauseVersion:
		return versionInRange(s.Version, cl.lo, cl.hi)
	case clauseEnabled:
		return s.VariantEnabled(cl.name)
	case clauseDisabled:
		return s.Variant(cl.name) == "off"
	case clauseValue:
		return s.VariantContains(cl.name, cl.value)
	}
	return false
}

func versionInRange(version, lo, hi string) bool {
	if version == "" {
		return false
	}
	if lo != "" && gnu.Compare(version, lo) < 0 {
		return false
	}
	if hi != "" {
		// an upper bound like ":4.4" includes 4.4.x releases
		if gnu.Compare(version, hi) > 0 && !strings.HasPrefix(version, hi+".") {
			return false
		}
	}
	return true
}

// Satisfies evaluates a constraint string against the spec.
// Malformed constraints never match.
func (s *Spec) Satisfies(constraint string) bool {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Matches(s)
}
