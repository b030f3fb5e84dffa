package tenancy

import (
	"errors"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Taller Central":             "taller-central",
		"  Mecánica Güemes & Hijos ": "mecanica-guemes-hijos",
		"Ñandú 4x4":                  "nandu-4x4",
		"---":                        "",
		"ABC_123":                    "abc-123",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]bool{"taller-central": true, "taller-central-2": true}
	got, err := UniqueSlug("Taller Central", func(s string) (bool, error) { return used[s], nil })
	if err != nil {
		t.Fatalf("unique slug: %v", err)
	}
	if got != "taller-central-3" {
		t.Fatalf("expected taller-central-3, got %s", got)
	}

	got, _ = UniqueSlug("!!!", func(string) (bool, error) { return false, nil })
	if got != "tenant" {
		t.Fatalf("expected fallback slug, got %s", got)
	}

	boom := errors.New("boom")
	if _, err := UniqueSlug("x", func(string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
