package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/manifest"
)

// Registry loads an entry manifest and every manifest it includes,
// transitively, and orders them so included files come first.
type Registry struct {
	manifests    map[string]*manifest.Manifest // absolute path -> manifest
	dependencies map[string][]string           // absolute path -> included absolute paths
	entryPath    string
}

// NewRegistry creates a registry rooted at the given entry manifest
func NewRegistry(entryPath string) (*Registry, error) {
	absPath, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entry path: %w", err)
	}
	return &Registry{
		manifests:    make(map[string]*manifest.Manifest),
		dependencies: make(map[string][]string),
		entryPath:    absPath,
	}, nil
}

// EntryPath is the absolute path of the entry manifest
func (r *Registry) EntryPath() string { return r.entryPath }

// Discover performs a breadth-first walk from the entry manifest, loading
// and validating each file it reaches. Malformed files are reported as
// diagnostics; a missing file is an error.
func (r *Registry) Discover() (*diagnostic.Diagnostics, error) {
	diag := diagnostic.New()
	queue := []string{r.entryPath}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		f, err := os.Open(path)
		if err != nil {
			return diag, fmt.Errorf("manifest not found: %s", path)
		}
		m, err := manifest.Decode(f)
		f.Close()
		if err != nil {
			diag.ErrorfInFile(path, 0, 0, "%v", err)
			continue
		}
		m.Path = path
		r.manifests[path] = m
		diag.MergeInFile(m.Validate(), path)

		var deps []string
		for _, inc := range m.Include {
			if ext := filepath.Ext(inc.Value); ext != ".yaml" && ext != ".yml" {
				diag.ErrorfInFile(path, inc.Line, inc.Column, "included file must be YAML: %s", inc.Value)
				continue
			}
			resolved := resolveInclude(inc.Value, filepath.Dir(path))
			if _, err := os.Stat(resolved); os.IsNotExist(err) {
				return diag, fmt.Errorf("included manifest not found: %s (resolved from %q in %s)",
					resolved, inc.Value, path)
			}
			deps = append(deps, resolved)
			if !visited[resolved] {
				queue = append(queue, resolved)
			}
		}
		r.dependencies[path] = deps
	}
	return diag, nil
}

// TopologicalSort returns manifest paths with included files first and the
// entry manifest last. An include cycle is an error naming the cycle.
func (r *Registry) TopologicalSort() ([]string, error) {
	var sorted []string
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(path string, stack []string) error
	visit = func(path string, stack []string) error {
		if visiting[path] {
			start := 0
			for i, p := range stack {
				if p == path {
					start = i
					break
				}
			}
			var names []string
			for _, p := range append(stack[start:], path) {
				names = append(names, filepath.Base(p))
			}
			return fmt.Errorf("include cycle detected: %s", strings.Join(names, " -> "))
		}
		if visited[path] {
			return nil
		}
		visiting[path] = true
		stack = append(stack, path)
		for _, dep := range r.dependencies[path] {
			if err := visit(dep, stack); err != nil {
				return err
			}
		}
		visiting[path] = false
		visited[path] = true
		if _, ok := r.manifests[path]; ok {
			sorted = append(sorted, path)
		}
		return nil
	}

	if err := visit(r.entryPath, nil); err != nil {
		return nil, err
	}
	return sorted, nil
}

// Manifest returns the manifest loaded from the absolute path, or nil
func (r *Registry) Manifest(path string) *manifest.Manifest {
	return r.manifests[path]
}

// Ordered returns the loaded manifests in dependency order
func (r *Registry) Ordered() ([]*manifest.Manifest, error) {
	paths, err := r.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]*manifest.Manifest, len(paths))
	for i, p := range paths {
		out[i] = r.manifests[p]
	}
	return out, nil
}

// resolveInclude resolves an include relative to the including manifest
func resolveInclude(include, dir string) string {
	if filepath.IsAbs(include) {
		return filepath.Clean(include)
	}
	return filepath.Clean(filepath.Join(dir, include))
}
