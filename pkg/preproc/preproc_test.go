package preproc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreprocessExpandsMacrosAndFollowsIncludes(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "const.h")
	if err := os.WriteFile(header, []byte("#define GREETING \"hi\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.c")
	src := "#include \"const.h\"\nchar *msg = GREETING;\n"
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, diags, err := Preprocess(main, &Options{IncludePaths: []string{dir}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !strings.Contains(out, `"hi"`) {
		t.Fatalf("expected expanded GREETING in output, got %q", out)
	}
}

func TestPreprocessAppliesDefinesAndUndefines(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.c")
	src := "#ifdef FEATURE\nint on = 1;\n#endif\n#ifndef GONE\nint still_here = 1;\n#endif\n"
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := Preprocess(main, &Options{
		Defines:   map[string]string{"FEATURE": "1", "GONE": "1"},
		Undefines: []string{"GONE"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "on = 1") {
		t.Fatalf("expected FEATURE-guarded code to survive, got %q", out)
	}
	if !strings.Contains(out, "still_here = 1") {
		t.Fatalf("expected GONE to have been undefined so the ifndef body survives, got %q", out)
	}
}

func TestPreprocessStringDoesNotRequireATempFileOnTheInternalPath(t *testing.T) {
	out, _, err := PreprocessString("#define N 3\nint a[N];\n", "in-memory.c", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "3") {
		t.Fatalf("expected expanded N in output, got %q", out)
	}
}

func TestNeedsPreprocessingRecognizesPreprocessedExtensions(t *testing.T) {
	if NeedsPreprocessing("foo.i") {
		t.Error("expected .i files to be reported as already preprocessed")
	}
	if NeedsPreprocessing("foo.p") {
		t.Error("expected .p files to be reported as already preprocessed")
	}
	if !NeedsPreprocessing("foo.c") {
		t.Error("expected .c files to need preprocessing")
	}
}
