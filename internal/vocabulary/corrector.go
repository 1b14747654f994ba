// Package vocabulary fixes recurring dictation mistakes in recognized speech,
// for example "go routine" heard instead of "goroutine".
//
// A rules file holds one rule per line:
//
//	# comment
//	go routine => goroutine
//	s/\bk ?8 ?s\b/Kubernetes/g
//
// Term rules match case-insensitively on word boundaries. Substitution rules
// use sed syntax with the flags g, m and s and always ignore case.
package vocabulary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const defaultIterationLimit = 30

type rule interface {
	apply(input string) (string, bool)
}

// Corrector rewrites final transcripts until no rule changes them or the
// iteration limit is reached.
type Corrector struct {
	rules []rule
	limit int
}

// Load reads rules from path. A blank path or a missing file yields a
// corrector without rules.
func Load(path string, limit int) (*Corrector, error) {
	if strings.TrimSpace(path) == "" {
		return newCorrector(nil, limit), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newCorrector(nil, limit), nil
		}
		return nil, fmt.Errorf("open vocabulary file %q: %w", path, err)
	}
	defer f.Close()

	c, err := Parse(f, limit)
	if err != nil {
		return nil, fmt.Errorf("vocabulary file %q: %w", path, err)
	}
	return c, nil
}

func Parse(r io.Reader, limit int) (*Corrector, error) {
	var rules []rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return newCorrector(rules, limit), nil
}

func newCorrector(rules []rule, limit int) *Corrector {
	if limit <= 0 {
		limit = defaultIterationLimit
	}
	return &Corrector{rules: rules, limit: limit}
}

func (c *Corrector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Correct applies every rule in file order. A nil Corrector returns text as is.
func (c *Corrector) Correct(text string) string {
	if c == nil || len(c.rules) == 0 {
		return text
	}
	for i := 0; i < c.limit; i++ {
		changed := false
		for _, r := range c.rules {
			if next, ok := r.apply(text); ok {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text
}

func parseLine(line string) (rule, error) {
	isTerm := strings.Contains(line, "=>")
	if isSubstitution(line) {
		parsed, err := parseSubstitution(line)
		if err == nil || !isTerm {
			return parsed, err
		}
	}
	if isTerm {
		return parseTerm(line)
	}
	return nil, errors.New("unsupported rule format")
}

type termRule struct {
	re *regexp.Regexp
	to string
}

func parseTerm(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("term rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordByte(from[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(from[len(from)-1]) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid term %q: %w", from, err)
	}
	return termRule{re: re, to: to}, nil
}

func (r termRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.to)
	return output, output != input
}

type substitutionRule struct {
	re     *regexp.Regexp
	to     string
	global bool
}

func parseSubstitution(line string) (rule, error) {
	delim := line[1]
	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	to, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement: %w", err)
	}

	flags := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			flags += string(flag)
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return substitutionRule{re: re, to: to, global: global}, nil
}

func (r substitutionRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.to)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.to, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// readDelimited reads up to the next unescaped delim. Escapes are kept so the
// regex engine sees them.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			if ch != delim {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(ch)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isSubstitution(line string) bool {
	return len(line) > 2 && line[0] == 's' && !isWordByte(line[1]) && line[1] != ' ' && line[1] != '\t'
}

func isWordByte(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
