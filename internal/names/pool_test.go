package names

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func firstChoice(int) int { return 0 }

func liveSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func TestAssignPrefersFreeBaseName(t *testing.T) {
	pool := NewPool([]string{"Alex"}, WithIntN(firstChoice))

	if name := pool.Assign(liveSet()); name != "Alex" {
		t.Fatalf("expected Alex, got %q", name)
	}
}

func TestAssignUsesNumericVariantWhenBaseTaken(t *testing.T) {
	pool := NewPool([]string{"Alex"}, WithIntN(firstChoice))

	if name := pool.Assign(liveSet("Alex")); name != "Alex2" {
		t.Fatalf("expected Alex2, got %q", name)
	}
	if name := pool.Assign(liveSet("Alex", "Alex2", "Alex3")); name != "Alex4" {
		t.Fatalf("expected Alex4, got %q", name)
	}
}

func TestAssignSkipsBaseWhenAllVariantsTaken(t *testing.T) {
	live := liveSet("Alex")
	for suffix := 2; suffix < 100; suffix++ {
		live[fmt.Sprintf("Alex%d", suffix)] = struct{}{}
	}
	pool := NewPool([]string{"Alex", "Sam"}, WithIntN(firstChoice))

	if name := pool.Assign(live); name != "Sam" {
		t.Fatalf("expected exhausted base to be skipped, got %q", name)
	}

	live["Sam"] = struct{}{}
	for suffix := 2; suffix < 100; suffix++ {
		live[fmt.Sprintf("Sam%d", suffix)] = struct{}{}
	}
	name := pool.Assign(live)
	if name != "Guest1000" {
		t.Fatalf("expected guest fallback, got %q", name)
	}
}

func TestAssignFallsBackForEmptyPool(t *testing.T) {
	pool := NewPool(nil, WithIntN(func(n int) int { return n - 1 }))

	name := pool.Assign(liveSet())
	if name != "Guest9999" {
		t.Fatalf("expected Guest9999, got %q", name)
	}
}

func TestAssignChoosesAmongCandidates(t *testing.T) {
	var seen int
	pool := NewPool([]string{"Alex", "Sam", "Kim"}, WithIntN(func(n int) int {
		seen = n
		return n - 1
	}))

	name := pool.Assign(liveSet("Sam"))
	if seen != 3 {
		t.Fatalf("expected three candidates, got %d", seen)
	}
	if name != "Kim" {
		t.Fatalf("expected last candidate Kim, got %q", name)
	}
}

func TestAssignNeverReturnsLiveName(t *testing.T) {
	pool := NewPool([]string{"Alex", "Sam"})
	live := liveSet()
	for i := 0; i < 150; i++ {
		name := pool.Assign(live)
		if _, taken := live[name]; taken && !strings.HasPrefix(name, FallbackPrefix) {
			t.Fatalf("assigned live name %q", name)
		}
		live[name] = struct{}{}
	}
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	if err := os.WriteFile(path, []byte("Alex\n\n  Sam  \n\t\nKim"), 0o600); err != nil {
		t.Fatalf("failed to write names file: %v", err)
	}

	pool, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if pool.Size() != 3 {
		t.Fatalf("expected 3 names, got %d", pool.Size())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing names file")
	}
}
