package diagnostic

import (
	"strconv"
	"testing"
)

func TestSort(t *testing.T) {
	diags := []Diagnostic{
		{Kind: UnresolvedClass, FilePath: "b.php", Line: 1},
		{Kind: UnresolvedImport, FilePath: "a.php", Line: 9},
		{Kind: UnresolvedClass, FilePath: "a.php", Line: 3, Symbol: `App\Z`},
		{Kind: UnresolvedClass, FilePath: "a.php", Line: 3, Symbol: `App\A`},
	}
	Sort(diags)

	expected := []string{"a.php:3:App\\A", "a.php:3:App\\Z", "a.php:9:", "b.php:1:"}
	for i, d := range diags {
		got := d.FilePath + ":" + strconv.Itoa(d.Line) + ":" + d.Symbol
		if got != expected[i] {
			t.Errorf("position %d = %s, expected %s", i, got, expected[i])
		}
	}
}

func TestKindRule(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		rule := k.Rule()
		if rule == "unknown" || seen[rule] {
			t.Errorf("kind %s has bad or duplicate rule %q", k, rule)
		}
		seen[rule] = true
	}
}

func TestString(t *testing.T) {
	d := Diagnostic{Kind: UnresolvedImport, FilePath: "src/A.php", Line: 4, Detail: `import App\Missing does not resolve`}
	if d.String() != `src/A.php:4: UnresolvedImport: import App\Missing does not resolve` {
		t.Errorf("unexpected String(): %s", d.String())
	}
}
