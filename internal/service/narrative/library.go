package narrative

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed scripts/*.json
var builtin embed.FS

// Library holds compiled scripts by id.
type Library struct {
	scripts map[string]*Script
}

// NewLibrary returns the scripts shipped with the binary.
func NewLibrary() (*Library, error) {
	return LoadFS(builtin, "scripts")
}

// LoadDir compiles every *.json script in dir.
func LoadDir(dir string) (*Library, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS compiles every *.json script under dir in fsys.
func LoadFS(fsys fs.FS, dir string) (*Library, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts: %w", err)
	}
	lib := &Library{scripts: make(map[string]*Script)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		script, err := Compile(data)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", entry.Name(), err)
		}
		if _, dup := lib.scripts[script.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q in %s", ErrInvalidScript, script.ID, entry.Name())
		}
		lib.scripts[script.ID] = script
	}
	log.Printf("[narrative] loaded %d scripts", len(lib.scripts))
	return lib, nil
}

// IDs lists the loaded script ids in order.
func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.scripts))
	for id := range l.scripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Script returns a compiled script.
func (l *Library) Script(id string) (*Script, bool) {
	s, ok := l.scripts[id]
	return s, ok
}

// Open starts a new story for id.
func (l *Library) Open(id string) (*Story, error) {
	script, ok := l.scripts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, id)
	}
	return NewStory(script), nil
}
