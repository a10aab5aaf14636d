// Package preproc is the driver the cepa CLI uses to turn a single
// translation unit into flattened preprocessed text. It wires package pp's
// Session and package includefs's Resolver together as the default,
// internal path, and falls back to shelling out to the system compiler's
// own preprocessor (the external path, which needs nothing from the rest
// of this module besides os/exec) when requested.
package preproc

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cepa-project/cepa/includefs"
	"github.com/cepa-project/cepa/internal/diag"
	"github.com/cepa-project/cepa/pp"
)

// Options configures the preprocessing step.
type Options struct {
	IncludePaths []string          // -I directories
	SystemPaths  []string          // -isystem directories
	GlobRoots    []string          // doublestar patterns searched like a system path
	Defines      map[string]string // -D macros (name -> value, empty string for simple define)
	Undefines    []string          // -U macros
	UseExternal  bool              // force use of the external preprocessor
}

// Preprocess runs the preprocessor on the given source file and returns the
// flattened source text. By default it uses the internal Session/Resolver
// pipeline; set UseExternal to shell out to "cc -E" (or gcc/clang) instead.
func Preprocess(filename string, opts *Options) (string, []diag.Diagnostic, error) {
	if opts != nil && opts.UseExternal {
		out, err := preprocessExternal(filename, opts)
		return out, nil, err
	}
	return preprocessInternal(filename, opts)
}

func preprocessInternal(filename string, opts *Options) (string, []diag.Diagnostic, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	resolver := includefs.New()
	defines := map[string]string{}
	var prologue strings.Builder

	if opts != nil {
		for _, dir := range opts.IncludePaths {
			resolver.AddUserPath(dir)
		}
		for _, dir := range opts.SystemPaths {
			resolver.AddSystemPath(dir)
		}
		for _, pattern := range opts.GlobRoots {
			if err := resolver.AddGlobRoot(pattern); err != nil {
				return "", nil, fmt.Errorf("invalid glob root %q: %w", pattern, err)
			}
		}
		for name, value := range opts.Defines {
			defines[name] = value
		}
		// #undef lines run against the predefined-macros frame, which the
		// session fully consumes before this, the real source frame, is
		// read, so issuing them as a prologue here reproduces -U's effect
		// of undoing a -D without the caller needing to touch opts.Defines.
		for _, name := range opts.Undefines {
			fmt.Fprintf(&prologue, "#undef %s\n", name)
		}
	}

	text := prologue.String() + string(source)
	out, diags := pp.Preprocess(filename, text, resolver, defines)
	return out, diags, nil
}

// preprocessExternal uses the system C preprocessor (cc -E).
func preprocessExternal(filename string, opts *Options) (string, error) {
	args := []string{"-E"}

	if opts != nil {
		for _, path := range opts.IncludePaths {
			args = append(args, "-I"+path)
		}
		for _, path := range opts.SystemPaths {
			args = append(args, "-isystem", path)
		}
		for name, value := range opts.Defines {
			if value == "" {
				args = append(args, "-D"+name)
			} else {
				args = append(args, "-D"+name+"="+value)
			}
		}
		for _, name := range opts.Undefines {
			args = append(args, "-U"+name)
		}
	}

	args = append(args, filename)

	cppCmd := findPreprocessor()
	if cppCmd == "" {
		return "", fmt.Errorf("no C preprocessor found (tried: cc, gcc, clang)")
	}

	cmd := exec.Command(cppCmd, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = filepath.Dir(filename)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("preprocessing failed: %v\n%s", err, stderr.String())
	}

	return stdout.String(), nil
}

// PreprocessString preprocesses source code provided directly as a string,
// writing it to a temporary file only when the external path is requested
// (the internal path never needs one).
func PreprocessString(source, filename string, opts *Options) (string, []diag.Diagnostic, error) {
	if opts == nil || !opts.UseExternal {
		resolver := includefs.New()
		defines := map[string]string{}
		var prologue strings.Builder
		if opts != nil {
			for _, dir := range opts.IncludePaths {
				resolver.AddUserPath(dir)
			}
			for _, dir := range opts.SystemPaths {
				resolver.AddSystemPath(dir)
			}
			for _, pattern := range opts.GlobRoots {
				if err := resolver.AddGlobRoot(pattern); err != nil {
					return "", nil, fmt.Errorf("invalid glob root %q: %w", pattern, err)
				}
			}
			for name, value := range opts.Defines {
				defines[name] = value
			}
			for _, name := range opts.Undefines {
				fmt.Fprintf(&prologue, "#undef %s\n", name)
			}
		}
		out, diags := pp.Preprocess(filename, prologue.String()+source, resolver, defines)
		return out, diags, nil
	}

	tmpDir := os.TempDir()
	baseName := filepath.Base(filename)
	if baseName == "" {
		baseName = "source.c"
	}
	tmpFile := filepath.Join(tmpDir, "cepa-"+baseName)

	if err := os.WriteFile(tmpFile, []byte(source), 0644); err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile)

	out, err := preprocessExternal(tmpFile, opts)
	return out, nil, err
}

// NeedsPreprocessing returns true if the file might need preprocessing.
// Files ending in .i or .p are considered already preprocessed.
func NeedsPreprocessing(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext != ".i" && ext != ".p"
}

// findPreprocessor searches for a C preprocessor on the system.
func findPreprocessor() string {
	candidates := []string{"cc", "gcc", "clang"}
	for _, cmd := range candidates {
		if path, err := exec.LookPath(cmd); err == nil {
			return path
		}
	}
	return ""
}
