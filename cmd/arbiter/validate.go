package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/validator"
)

type validateOptions struct {
	rules    bool
	progress bool
}

func newValidateCommand(a *app) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Validate workflow or rule set definitions",
		Long: `Validate workflow definitions before they are deployed.

Each file is decoded and checked for structural problems: a single start
node, at least one end node, dangling connections, unreachable nodes,
missing branch edges, unknown operators and actions, and expressions that
do not compile. Directories are searched recursively for .yaml, .yml and
.json files.

Examples:
  # Validate one workflow
  arbiter validate workflows/personal-loan.yaml

  # Validate a directory
  arbiter validate workflows/

  # Validate standalone rule sets, JSON output for CI
  arbiter validate --rules rules/ -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.rules, "rules", false, "treat files as standalone rule sets")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show progress on stderr")
	return cmd
}

// fileValidation is the outcome for one definition file.
type fileValidation struct {
	Path     string   `json:"path"`
	ID       string   `json:"id,omitempty"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type validationReport struct {
	Files   []fileValidation `json:"files"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
}

func (r *validationReport) WriteText(w io.Writer) error {
	for _, f := range r.Files {
		label := f.Path
		if f.ID != "" {
			label = fmt.Sprintf("%s (%s)", f.Path, f.ID)
		}
		mark := "✓"
		if !f.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, label)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "    error: %s\n", e)
		}
		for _, warn := range f.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warn)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d valid, %d invalid\n", r.Valid, r.Invalid)
	return err
}

func (r *validationReport) Header() []string {
	return []string{"FILE", "ID", "STATUS", "ERRORS", "FIRST ERROR"}
}

func (r *validationReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Files))
	for _, f := range r.Files {
		status, first := "valid", ""
		if !f.Valid {
			status = "invalid"
		}
		if len(f.Errors) > 0 {
			first = f.Errors[0]
		}
		rows = append(rows, []string{f.Path, f.ID, status, strconv.Itoa(len(f.Errors)), first})
	}
	return rows
}

func (a *app) runValidate(cmd *cobra.Command, args []string, opts *validateOptions) error {
	paths, err := expandDefinitionPaths(args)
	if err != nil {
		return cli.NewUsageError("validate", err)
	}
	if len(paths) == 0 {
		return cli.NewUsageError("validate", errors.New("no definition files found"))
	}

	var progress *cli.SimpleProgress
	if opts.progress {
		progress = cli.NewProgressReporter(a.stderr, "files")
		progress.Start(int64(len(paths)))
	}

	dec := a.decoder()
	report := &validationReport{Files: make([]fileValidation, 0, len(paths))}
	for i, path := range paths {
		fv := validateFile(dec, path, opts.rules)
		if fv.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}
		report.Files = append(report.Files, fv)
		a.logger.Debug("validated definition", "path", path, "valid", fv.Valid, "errors", len(fv.Errors))
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if err := a.print(cmd, report); err != nil {
		return err
	}
	if report.Invalid > 0 {
		return cli.Reported("validate", fmt.Errorf("%d of %d definitions invalid", report.Invalid, len(paths)))
	}
	return nil
}

func validateFile(dec *codec.Decoder, path string, rules bool) fileValidation {
	fv := fileValidation{Path: path}

	var result validator.Result
	if rules {
		set, err := dec.ReadRulesFile(path)
		if err != nil {
			fv.Errors = []string{err.Error()}
			return fv
		}
		result = validator.ValidateRules(set)
	} else {
		def, err := dec.ReadWorkflowFile(path)
		if err != nil {
			fv.Errors = []string{err.Error()}
			return fv
		}
		fv.ID = def.ID
		result = validator.ValidateWorkflow(def)
	}

	fv.Valid = result.IsValid
	fv.Errors = result.Errors
	fv.Warnings = result.Warnings
	return fv
}

// expandDefinitionPaths resolves files and directories to a sorted list of
// definition files. Named files are kept whatever their extension.
func expandDefinitionPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if codec.IsDefinitionFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return paths, nil
}
