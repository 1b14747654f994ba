package vocabulary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCorrectorTermsAndSubstitutions(t *testing.T) {
	t.Parallel()

	c := mustParse(t, strings.Join([]string{
		"# interview vocabulary",
		"go routine => goroutine",
		"",
		`s/\bk ?8 ?s\b/Kubernetes/g`,
		"s/big o of (n)/O($1)/",
	}, "\n"))
	if c.Len() != 3 {
		t.Fatalf("expected 3 rules, got %d", c.Len())
	}

	got := c.Correct("Each Go Routine runs on k 8 s with big o of n cost")
	want := "Each goroutine runs on Kubernetes with O(n) cost"
	if got != want {
		t.Fatalf("unexpected correction:\n got %q\nwant %q", got, want)
	}
}

func TestCorrectorTermsRespectWordBoundaries(t *testing.T) {
	t.Parallel()

	c := mustParse(t, "sql => SQL\n")
	if got := c.Correct("mysql and sql"); got != "mysql and SQL" {
		t.Fatalf("unexpected correction: %q", got)
	}
}

func TestCorrectorIteratesUntilStable(t *testing.T) {
	t.Parallel()

	c := mustParse(t, "react js => ReactJS\nreactjs => React\n")
	if got := c.Correct("I used react js"); got != "I used React" {
		t.Fatalf("unexpected correction: %q", got)
	}
}

func TestCorrectorIterationLimitBoundsCycles(t *testing.T) {
	t.Parallel()

	c, err := Parse(strings.NewReader("ping => pong\npong => ping\n"), 3)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := c.Correct("ping"); got != "ping" && got != "pong" {
		t.Fatalf("unexpected correction: %q", got)
	}
}

func TestSubstitutionWithoutGlobalReplacesFirstMatch(t *testing.T) {
	t.Parallel()

	r, err := parseSubstitution("s/um //")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, changed := r.apply("um so um yes")
	if !changed || got != "so um yes" {
		t.Fatalf("unexpected single pass: %q", got)
	}

	c := mustParse(t, "s/um //\n")
	if got := c.Correct("um so um yes"); got != "so yes" {
		t.Fatalf("repeated passes should remove every filler, got %q", got)
	}
}

func TestSubstitutionEscapedDelimiter(t *testing.T) {
	t.Parallel()

	c := mustParse(t, `s/ci cd/CI\/CD/`+"\n")
	if got := c.Correct("our ci cd pipeline"); got != "our CI/CD pipeline" {
		t.Fatalf("unexpected correction: %q", got)
	}
}

func TestTermThatLooksLikeSubstitution(t *testing.T) {
	t.Parallel()

	c := mustParse(t, "s.o.l.i.d => SOLID\n")
	if got := c.Correct("the s.o.l.i.d principles"); got != "the SOLID principles" {
		t.Fatalf("unexpected correction: %q", got)
	}
}

func TestParseRejectsBadRules(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"just some words",
		"s/open/",
		"s/a/b/x",
		" => empty",
	} {
		if _, err := Parse(strings.NewReader(input), 0); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestLoadMissingFileHasNoRules(t *testing.T) {
	t.Parallel()

	c, err := Load(filepath.Join(t.TempDir(), "missing.rules"), 0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.Len() != 0 || c.Correct("unchanged") != "unchanged" {
		t.Fatalf("expected empty corrector")
	}

	var nilCorrector *Corrector
	if nilCorrector.Correct("as is") != "as is" {
		t.Fatalf("nil corrector must pass text through")
	}
}

func TestLoadReportsLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocabulary.rules")
	if err := os.WriteFile(path, []byte("go routine => goroutine\nbroken\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, err := Load(path, 0)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func mustParse(t *testing.T, input string) *Corrector {
	t.Helper()
	c, err := Parse(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return c
}
