package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cepa-project/cepa/calc"
	"github.com/cepa-project/cepa/pkg/preproc"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Preprocessor flags, accepting CompCert/cc-style single-dash spellings
// normalized to double-dash (see normalizeFlags below).
var (
	includePaths  []string
	systemPaths   []string
	globRoots     []string
	defineFlags   []string
	undefineFlags []string
	useExternalPP bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// singleDashFlags lists the flags that should also accept CompCert-style
// single-dash spelling (-I, -D, -U) alongside pflag's double-dash form.
var singleDashFlags = map[string]string{
	"-I": "--include",
	"-D": "--define",
	"-U": "--undefine",
}

// normalizeFlags rewrites a leading "-I<path>"-style CompCert flag (no
// space before the value) into the "--include=<path>" form pflag expects,
// leaving anything already double-dash or unrecognized untouched.
func normalizeFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		rewrote := false
		for short, long := range singleDashFlags {
			if strings.HasPrefix(arg, short) && arg != short && !strings.HasPrefix(arg, "--") {
				result = append(result, long+"="+arg[len(short):])
				rewrote = true
				break
			}
		}
		if !rewrote {
			result = append(result, arg)
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cepa",
		Short:         "cepa is a standalone C preprocessor and expression calculator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newPreprocessCmd(out, errOut))
	rootCmd.AddCommand(newCalcCmd(out, errOut))

	return rootCmd
}

func newPreprocessCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess [file]",
		Short: "Run the preprocessor over a file and print the flattened output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			opts := buildPreprocessorOptions()

			content, diags, err := preproc.Preprocess(filename, opts)
			if err != nil {
				fmt.Fprintf(errOut, "cepa: preprocessing error: %v\n", err)
				return err
			}
			for _, d := range diags {
				fmt.Fprintf(errOut, "%s:%d: %s\n", d.Filename, d.Line, d.Message)
			}
			fmt.Fprint(out, content)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	cmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	cmd.Flags().StringArrayVar(&globRoots, "glob-root", nil, "Add a doublestar glob pattern searched for headers by base name")
	cmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	cmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	cmd.Flags().BoolVar(&useExternalPP, "external-cpp", false, "Use external C preprocessor instead of internal")

	return cmd
}

func buildPreprocessorOptions() *preproc.Options {
	opts := &preproc.Options{
		IncludePaths: includePaths,
		SystemPaths:  systemPaths,
		GlobRoots:    globRoots,
		Defines:      make(map[string]string),
		Undefines:    undefineFlags,
		UseExternal:  useExternalPP,
	}

	for _, d := range defineFlags {
		if idx := strings.Index(d, "="); idx >= 0 {
			opts.Defines[d[:idx]] = d[idx+1:]
		} else {
			opts.Defines[d] = ""
		}
	}

	return opts
}

func newCalcCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "calc",
		Short: "Start an interactive expression evaluator (quit with 'quit' or 'q')",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repl := calc.NewRepl(os.Stdin, out)
			return repl.Run()
		},
	}
}
