package xsd

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// SchemaLoader compiles a schema document from a file system together with
// everything it reaches through xs:include and xs:import. Locations are
// slash-separated and relative to the root of FS; schemaLocation values are
// resolved against the directory of the referencing document.
//
// A missing or unreadable include fails the load with the underlying fs
// error. A failed import is logged and skipped; references into its
// namespace then fail to resolve.
type SchemaLoader struct {
	FS     fs.FS
	Logger *slog.Logger
}

// NewSchemaLoader creates a loader reading from fsys.
func NewSchemaLoader(fsys fs.FS) *SchemaLoader {
	return &SchemaLoader{FS: fsys}
}

// LoadFS is a convenience wrapper around NewSchemaLoader(fsys).Load(name).
func LoadFS(fsys fs.FS, name string) (*Schema, error) {
	return NewSchemaLoader(fsys).Load(name)
}

// Load compiles the schema at location and every document it includes or
// imports into one Schema.
func (sl *SchemaLoader) Load(location string) (*Schema, error) {
	run := &loadRun{
		loader:   sl,
		compiler: newCompiler(),
		visited:  make(map[string]bool),
	}
	if err := run.load(location, documentContext{kind: rootDocument}); err != nil {
		return nil, err
	}
	s, err := run.compiler.finish()
	if err != nil {
		return nil, err
	}
	sl.logger().Debug("schema compiled",
		"location", location,
		"documents", len(run.visited),
		"elements", len(s.ElementDecls),
		"types", len(s.TypeDefs))
	return s, nil
}

func (sl *SchemaLoader) logger() *slog.Logger {
	if sl.Logger != nil {
		return sl.Logger
	}
	return slog.Default()
}

// loadRun is the state of one Load call.
type loadRun struct {
	loader   *SchemaLoader
	compiler *compiler
	visited  map[string]bool
}

func (r *loadRun) load(location string, ctx documentContext) error {
	if r.visited[location] {
		return nil
	}
	r.visited[location] = true

	doc, err := r.loader.loadDocument(location)
	if err != nil {
		return err
	}
	directives, err := r.compiler.addDocument(doc, location, ctx)
	if err != nil {
		return err
	}

	for _, d := range directives {
		if d.include {
			if d.schemaLocation == "" {
				return fmt.Errorf("%w: %s: xs:include without schemaLocation", ErrInvalidSchema, location)
			}
			target, err := resolveRelative(d.schemaLocation, location)
			if err == nil {
				err = r.load(target, documentContext{kind: includedDocument, namespace: d.namespace})
			}
			if err != nil {
				return fmt.Errorf("failed to include %s: %w", d.schemaLocation, err)
			}
			continue
		}

		if d.schemaLocation == "" {
			continue
		}
		target, err := resolveRelative(d.schemaLocation, location)
		if err == nil {
			err = r.load(target, documentContext{kind: importedDocument, namespace: d.namespace})
		}
		if err != nil {
			r.loader.logger().Warn("failed to load imported schema",
				"location", d.schemaLocation,
				"namespace", d.namespace,
				"error", err)
		}
	}
	return nil
}

// resolveRelative resolves a schemaLocation against the location of the
// document that references it.
func resolveRelative(relative, base string) (string, error) {
	if strings.Contains(relative, "://") {
		return "", fmt.Errorf("remote schema location %s: %w", relative, fs.ErrInvalid)
	}
	if strings.HasPrefix(relative, "/") {
		return strings.TrimPrefix(path.Clean(relative), "/"), nil
	}
	return path.Join(path.Dir(base), relative), nil
}

// loadDocument decodes the XML document stored at location.
func (sl *SchemaLoader) loadDocument(location string) (xmldom.Document, error) {
	if !fs.ValidPath(location) {
		return nil, &fs.PathError{Op: "open", Path: location, Err: fs.ErrInvalid}
	}

	f, err := sl.FS.Open(location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := xmldom.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSchema, location, err)
	}
	return doc, nil
}
