// Package extractor writes the bundled starter scripts into a script
// directory.
package extractor

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

//go:embed starter
var starterScripts embed.FS

const starterRoot = "starter"

// ErrTargetExists is returned when the target directory exists and force is off.
var ErrTargetExists = errors.New("target directory exists and --force not specified")

// Extractor handles script extraction operations
type Extractor struct {
	fs    afero.Fs
	force bool
	out   io.Writer
}

// NewExtractor creates a new Extractor writing to fsys. Progress goes to out.
func NewExtractor(fsys afero.Fs, force bool, out io.Writer) *Extractor {
	if out == nil {
		out = io.Discard
	}
	return &Extractor{fs: fsys, force: force, out: out}
}

// StarterScripts lists the bundled script names.
func StarterScripts() ([]string, error) {
	entries, err := fs.ReadDir(starterScripts, starterRoot)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ExtractScripts writes every starter script into targetDir and returns the
// written paths.
func (e *Extractor) ExtractScripts(targetDir string) ([]string, error) {
	fmt.Fprintf(e.out, "Target directory: %s\n", targetDir)
	fmt.Fprintf(e.out, "Force overwrite: %v\n\n", e.force)

	if err := e.prepareTargetDirectory(targetDir); err != nil {
		return nil, err
	}

	names, err := StarterScripts()
	if err != nil {
		return nil, fmt.Errorf("failed to list starter scripts: %w", err)
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		content, err := starterScripts.ReadFile(path.Join(starterRoot, name))
		if err != nil {
			return written, fmt.Errorf("failed to read starter script %s: %w", name, err)
		}
		dest := filepath.Join(targetDir, name)
		if err := afero.WriteFile(e.fs, dest, content, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", dest, err)
		}
		written = append(written, dest)
	}

	e.showExtractionSummary(targetDir, written)
	return written, nil
}

// prepareTargetDirectory ensures the target directory exists and is ready for extraction
func (e *Extractor) prepareTargetDirectory(targetDir string) error {
	_, err := e.fs.Stat(targetDir)
	switch {
	case err == nil:
		if !e.force {
			fmt.Fprintf(e.out, "⚠️  Target directory '%s' already exists.\n", targetDir)
			fmt.Fprintf(e.out, "Use --force to overwrite the starter scripts, or choose a different directory.\n")
			return ErrTargetExists
		}
		fmt.Fprintf(e.out, "📁 Target directory exists, will overwrite starter scripts due to --force flag\n")
	case os.IsNotExist(err):
		if err := e.fs.MkdirAll(targetDir, 0o755); err != nil {
			return fmt.Errorf("failed to create target directory: %w", err)
		}
		fmt.Fprintf(e.out, "📁 Created target directory: %s\n", targetDir)
	default:
		return fmt.Errorf("failed to check target directory: %w", err)
	}
	return nil
}

// showExtractionSummary displays a summary of extracted scripts
func (e *Extractor) showExtractionSummary(targetDir string, written []string) {
	fmt.Fprintf(e.out, "\n📊 Extraction Summary:\n")
	fmt.Fprintf(e.out, "===================\n")
	for _, p := range written {
		rel, err := filepath.Rel(targetDir, p)
		if err != nil {
			rel = p
		}
		fmt.Fprintf(e.out, "📝 %s\n", rel)
	}
	fmt.Fprintf(e.out, "\n✅ Script extraction completed successfully!\n")
	fmt.Fprintf(e.out, "Scripts in %s are hot-reloaded while the host runs.\n", targetDir)
}
