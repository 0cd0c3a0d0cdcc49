package revision

import (
	"regexp"
	"strings"
	"testing"
)

var allowed = regexp.MustCompile(`^[0-9\-.a-zA-Z_=]*$`)

func TestGenerateRevisionID(t *testing.T) {
	g := NewGenerator()

	tests := []struct {
		name string
		seed string
	}{
		{"short", "abc"},
		{"short with unsafe chars", "a/b c"},
		{"exactly max", strings.Repeat("x", MaxLength)},
		{"url seed", "127.0.0.1http://localhost:3000/files/127.0.0.1/report.docx31700000000000"},
		{"unicode", "документ.docx" + strings.Repeat("!", 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.GenerateRevisionID(tt.seed)
			if len(got) > MaxLength {
				t.Errorf("len = %d, want <= %d", len(got), MaxLength)
			}
			if !allowed.MatchString(got) {
				t.Errorf("key %q has disallowed characters", got)
			}
			if again := g.GenerateRevisionID(tt.seed); again != got {
				t.Errorf("not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestGenerateRevisionID_ShortSeedKept(t *testing.T) {
	g := NewGenerator()
	if got := g.GenerateRevisionID("a/b c"); got != "a_b_c" {
		t.Errorf("got %q, want %q", got, "a_b_c")
	}
}

func TestGenerateRevisionID_DistinctSeeds(t *testing.T) {
	g := NewGenerator()
	base := "127.0.0.1http://localhost/files/127.0.0.1/report.docx"
	a := g.GenerateRevisionID(base + "1700000000000")
	b := g.GenerateRevisionID(base + "1700000000001")
	if a == b {
		t.Errorf("distinct seeds produced the same key %q", a)
	}
	c := g.GenerateRevisionID(base + "2" + "1700000000000")
	if a == c {
		t.Errorf("version change did not change the key %q", a)
	}
}
