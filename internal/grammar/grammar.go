package grammar

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/linetrace/linelist-tracker/internal/entity"
)

// ErrorKind classifies grammar compilation failures.
type ErrorKind string

const (
	ErrKindInvalidPattern      ErrorKind = "INVALID_PATTERN"
	ErrKindNoEnabledComponents ErrorKind = "NO_ENABLED_COMPONENTS"
	ErrKindBadSeparator        ErrorKind = "BAD_SEPARATOR"
)

// GrammarError reports why a FormatProfile could not be compiled.
type GrammarError struct {
	Kind        ErrorKind
	ComponentID string
	Cause       error
}

func (e *GrammarError) Error() string {
	switch e.Kind {
	case ErrKindInvalidPattern:
		return fmt.Sprintf("invalid pattern for component %q: %v", e.ComponentID, e.Cause)
	case ErrKindNoEnabledComponents:
		return "profile has no enabled components"
	case ErrKindBadSeparator:
		return fmt.Sprintf("bad separator: %v", e.Cause)
	default:
		return fmt.Sprintf("grammar error: %v", e.Cause)
	}
}

func (e *GrammarError) Unwrap() error {
	return e.Cause
}

// variableSeparatorClass is the fixed set of dash-like runes accepted
// interchangeably when a profile allows variable separators. Covers the
// hyphen, Unicode hyphens, figure dash, en/em dashes, and minus sign.
const variableSeparatorClass = `[-\x{2010}\x{2011}\x{2012}\x{2013}\x{2014}\x{2212}]`

// CompositeMatcher segments a candidate identifier into the profile's
// components. Compilation is pure: the same profile always produces an
// identical matcher and template.
type CompositeMatcher struct {
	re       *regexp.Regexp
	template string
	order    []string
	groups   []int
}

// Template returns the canonical identifier template string.
func (m *CompositeMatcher) Template() string {
	return m.template
}

// CaptureOrder returns component ids in the order they are captured.
// Each component appears at most once.
func (m *CompositeMatcher) CaptureOrder() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Match segments the candidate into named captures. The second return is
// false when the candidate does not fit the grammar.
func (m *CompositeMatcher) Match(candidate string) (map[string]string, bool) {
	sub := m.re.FindStringSubmatch(candidate)
	if sub == nil {
		return nil, false
	}
	captures := make(map[string]string, len(m.order))
	for i, id := range m.order {
		captures[id] = sub[m.groups[i]]
	}
	return captures, true
}

// MatchString reports whether the candidate fits the grammar.
func (m *CompositeMatcher) MatchString(candidate string) bool {
	return m.re.MatchString(candidate)
}

// Engine compiles FormatProfiles into composite matchers, caching compiled
// matchers by their canonical shape.
type Engine struct {
	cache *lru.Cache[string, *CompositeMatcher]
}

// NewEngine creates a grammar engine with a bounded compile cache.
func NewEngine() *Engine {
	cache, _ := lru.New[string, *CompositeMatcher](128)
	return &Engine{cache: cache}
}

// Compile builds a composite matcher for the profile. It fails with a
// GrammarError when the profile has no enabled components or any enabled
// component's pattern is not a valid regular expression.
func (e *Engine) Compile(profile entity.FormatProfile) (*CompositeMatcher, error) {
	key := cacheKey(profile)
	if e.cache != nil {
		if m, ok := e.cache.Get(key); ok {
			return m, nil
		}
	}
	m, err := Compile(profile)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(key, m)
	}
	return m, nil
}

// Compile is the uncached compilation path.
func Compile(profile entity.FormatProfile) (*CompositeMatcher, error) {
	enabled := profile.EnabledComponents()
	if len(enabled) == 0 {
		return nil, &GrammarError{Kind: ErrKindNoEnabledComponents}
	}

	sepExpr, err := separatorExpr(profile)
	if err != nil {
		return nil, err
	}

	// Drop later occurrences of the same component id so it cannot appear
	// twice in the capture order.
	seen := make(map[string]struct{}, len(enabled))
	var (
		order []string
		parts []string
		names []string
	)
	for _, c := range enabled {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		if _, err := regexp.Compile(c.Pattern); err != nil {
			return nil, &GrammarError{Kind: ErrKindInvalidPattern, ComponentID: c.ID, Cause: err}
		}
		name := fmt.Sprintf("c%d", len(order))
		parts = append(parts, fmt.Sprintf("(?P<%s>%s)", name, c.Pattern))
		names = append(names, name)
		order = append(order, c.ID)
	}

	full := "^" + strings.Join(parts, sepExpr) + "$"
	re, err := regexp.Compile(full)
	if err != nil {
		// Individual patterns compiled, so this is a composition problem
		// (for example an unbalanced group spanning a component boundary).
		return nil, &GrammarError{Kind: ErrKindInvalidPattern, ComponentID: order[0], Cause: err}
	}

	groups := make([]int, len(names))
	for i, name := range names {
		groups[i] = re.SubexpIndex(name)
	}

	return &CompositeMatcher{
		re:       re,
		template: profile.Template(),
		order:    order,
		groups:   groups,
	}, nil
}

func separatorExpr(profile entity.FormatProfile) (string, error) {
	sep := profile.Separator
	if sep == "" || len([]rune(sep)) > 3 {
		return "", &GrammarError{
			Kind:  ErrKindBadSeparator,
			Cause: fmt.Errorf("separator must be 1-3 characters, got %q", sep),
		}
	}
	if !profile.AllowVariableSeparators {
		return regexp.QuoteMeta(sep), nil
	}
	if isDashLike(sep) {
		return variableSeparatorClass, nil
	}
	return "(?:" + regexp.QuoteMeta(sep) + "|" + variableSeparatorClass + ")", nil
}

func isDashLike(sep string) bool {
	runes := []rune(sep)
	if len(runes) != 1 {
		return false
	}
	switch runes[0] {
	case '-', '‐', '‑', '‒', '–', '—', '−':
		return true
	}
	return false
}

func cacheKey(profile entity.FormatProfile) string {
	var b strings.Builder
	b.WriteString(profile.Separator)
	if profile.AllowVariableSeparators {
		b.WriteString("|var")
	}
	for _, c := range profile.EnabledComponents() {
		b.WriteString("|")
		b.WriteString(c.ID)
		b.WriteString("=")
		b.WriteString(c.Pattern)
	}
	return b.String()
}
