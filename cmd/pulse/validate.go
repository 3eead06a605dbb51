package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/validate"
)

func validateCmd() *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "validate <file|glob>...",
		Short: "Validate encoded message files",
		Long: `Validate decodes each file and runs structural and semantic
validation against the vocabulary. Arguments may be files or glob
patterns (** matches across directories).

With --fresh the timestamp freshness check runs too, which makes
stored fixtures fail once they age past the replay window.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandGlobs(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no files matched")
			}

			v := validate.New(nil)
			failures := 0
			for _, path := range paths {
				if err := validateFile(v, path, fresh); err != nil {
					failures++
					fmt.Printf("FAIL %s: %v\n", path, err)
				} else {
					fmt.Printf("OK   %s\n", path)
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d files invalid", failures, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Also check timestamp freshness")
	return cmd
}

func validateFile(v *validate.Validator, path string, fresh bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := codec.Decode(data)
	if err != nil {
		return err
	}
	if fresh {
		return v.ValidateFresh(m)
	}
	return v.Validate(m)
}

// expandGlobs resolves each argument that contains glob metacharacters and
// passes plain paths through untouched.
func expandGlobs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			paths = append(paths, arg)
			continue
		}
		base, pattern := doublestar.SplitPattern(filepath.ToSlash(arg))
		matches, err := doublestar.Glob(os.DirFS(base), pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(base, m))
		}
	}
	return paths, nil
}
