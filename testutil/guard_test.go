package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingT struct {
	testing.TB
	failed string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, _ ...any) {
	r.failed = format
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal nested", InternalImportForbidden, "herdcore/internal/core", true},
		{"internal bare", InternalImportForbidden, "internal", false},
		{"internal pkg", InternalImportForbidden, "herdcore/pkg/domain", false},
		{"infra persistence", InfraImportForbidden, "herdcore/internal/infra/persistence/sqlite", true},
		{"infra root", InfraImportForbidden, "herdcore/internal/infra", true},
		{"blob facade", InfraImportForbidden, "herdcore/internal/blob", false},
		{"prefix exact", PrefixForbidden("herdcore/internal/core"), "herdcore/internal/core", true},
		{"prefix nested", PrefixForbidden("herdcore/internal/core"), "herdcore/internal/core/x", true},
		{"prefix sibling", PrefixForbidden("herdcore/internal/core"), "herdcore/internal/corex", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pred(tc.in); got != tc.want {
				t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAssertNoDirectImportsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "main.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	writeGo(t, dir, "main_test.go", "package tmp\nimport \"herdcore/internal/core\"\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, filepath.Join(dir, "sub"), "sub.go", "package sub\nimport \"herdcore/internal/core\"\n")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("import \"herdcore/internal/core\""), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	AssertNoDirectImports(t, dir, InternalImportForbidden, "test files and subdirectories are skipped")
}

func TestAssertNoDirectImportsReportsViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\tstore \"herdcore/internal/infra/persistence/sqlite\"\n)\nvar _ = fmt.Sprint\nvar _ = store.Store{}\n")

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "(in a.go)") {
		t.Fatalf("unexpected violations: %v", viols)
	}

	rec := &recordingT{}
	AssertNoDirectImports(rec, dir, InfraImportForbidden, "cli must use the facade")
	if !strings.Contains(rec.failed, "forbidden %s detected") {
		t.Fatalf("expected failure, got %q", rec.failed)
	}
}

func TestAssertNoDirectImportsMissingDir(t *testing.T) {
	rec := &recordingT{}
	AssertNoDirectImports(rec, filepath.Join(t.TempDir(), "missing"), InternalImportForbidden, "none")
	if !strings.HasPrefix(rec.failed, "scan ") {
		t.Fatalf("expected scan failure, got %q", rec.failed)
	}
}

func TestTransitiveDependencyViolationsUsesGoList(t *testing.T) {
	original := goListDeps
	t.Cleanup(func() { goListDeps = original })
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nherdcore/pkg/domain\n\nherdcore/internal/core\n"), nil
	}

	viols, _, err := transitiveDependencyViolations("./...", InternalImportForbidden)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(viols) != 1 || viols[0] != "herdcore/internal/core" {
		t.Fatalf("unexpected violations: %v", viols)
	}

	rec := &recordingT{}
	AssertNoTransitiveDependency(rec, "./...", InternalImportForbidden, "domain is a leaf")
	if rec.failed == "" {
		t.Fatalf("expected failure for transitive violation")
	}
}
