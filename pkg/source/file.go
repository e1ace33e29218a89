package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
)

// FileError records a definition file that could not be loaded.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// LoadResult is the outcome of loading a definition directory.
type LoadResult struct {
	// Workflows holds the loaded definitions keyed by id.
	Workflows map[string]*model.WorkflowDefinition

	// Files maps each definition id to the file it came from.
	Files map[string]string

	// Errors lists the files that were skipped, in path order.
	Errors []*FileError
}

// FileSource loads workflow definitions from a file or directory.
type FileSource struct {
	path    string
	decoder *codec.Decoder
	logger  *slog.Logger
}

// NewFileSource creates a source reading from path. A directory is walked
// recursively; hidden files and directories are skipped.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:    path,
		decoder: codec.NewDecoder(),
		logger:  logger.With("component", "source.file"),
	}
}

// WithDecoder replaces the codec decoder (for example a strict one).
func (s *FileSource) WithDecoder(d *codec.Decoder) *FileSource {
	s.decoder = d
	return s
}

// Path returns the configured path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads every definition file. Files that fail to decode, lack an id,
// or repeat an id already loaded are reported in Errors and skipped; only
// an unreadable root path is returned as an error.
func (s *FileSource) Load(ctx context.Context) (*LoadResult, error) {
	paths, err := s.definitionFiles()
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Workflows: make(map[string]*model.WorkflowDefinition),
		Files:     make(map[string]string),
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def, err := s.decoder.ReadWorkflowFile(path)
		if err != nil {
			result.Errors = append(result.Errors, &FileError{Path: path, Err: err})
			s.logger.Warn("failed to load definition file, skipping", "path", path, "error", err)
			continue
		}
		if def.ID == "" {
			result.Errors = append(result.Errors, &FileError{Path: path, Err: fmt.Errorf("definition has no id")})
			continue
		}
		if prev, dup := result.Files[def.ID]; dup {
			result.Errors = append(result.Errors, &FileError{
				Path: path,
				Err:  fmt.Errorf("duplicate definition id %q (already loaded from %s)", def.ID, prev),
			})
			continue
		}

		result.Workflows[def.ID] = def
		result.Files[def.ID] = path
		s.logger.Debug("loaded definition file",
			"path", path,
			"workflow_id", def.ID,
			"version", def.Version,
			"node_count", len(def.Nodes),
		)
	}

	s.logger.Info("loaded definitions from source",
		"path", s.path,
		"workflow_count", len(result.Workflows),
		"error_count", len(result.Errors),
	)

	return result, nil
}

func (s *FileSource) definitionFiles() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	var paths []string
	err = filepath.WalkDir(s.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != s.path && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && codec.IsDefinitionFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
