package scroll

import (
	"os"
	"path/filepath"

	"github.com/kittclouds/scrollforge/pkg/class"
)

// Warning is a non-fatal issue surfaced while parsing, such as a class
// or variable name colliding with a common English stopword.
type Warning struct {
	Kind    string
	Subject string
}

// Load parses filename (and everything it transitively @includes,
// resolved relative to its directory) into a finished class map and
// global variable table, using the OS filesystem.
func Load(filename string) (map[string]*class.Class, map[string]interface{}, []Warning, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, nil, err
	}
	dir := filepath.Dir(filename)
	name := filepath.Base(filename)
	return LoadString(dir, name, string(src), osIncludeResolver)
}

// LoadString parses src as a scroll file named name in dir, following
// @include statements via resolve.
func LoadString(dir, name, src string, resolve IncludeResolver) (map[string]*class.Class, map[string]interface{}, []Warning, error) {
	p := NewParser(resolve)
	if err := p.ParseFile(dir, name, src); err != nil {
		return nil, nil, nil, err
	}
	classes, globals, err := p.Finish()
	if err != nil {
		return nil, nil, nil, err
	}
	return classes, globals, lint(classes, globals), nil
}

func osIncludeResolver(dir, name string) (string, string, error) {
	path := filepath.Join(dir, name)
	if filepath.Ext(path) == "" {
		path += ".scroll"
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return filepath.Base(path), string(src), nil
}

// lint flags class and global-variable names that collide with a
// common English stopword, a likely authoring slip rather than intent.
func lint(classes map[string]*class.Class, globals map[string]interface{}) []Warning {
	var warnings []Warning
	for name := range classes {
		if class.ValidateName(name) {
			warnings = append(warnings, Warning{Kind: "class-name-is-stopword", Subject: name})
		}
	}
	for name := range globals {
		if class.ValidateName(name) {
			warnings = append(warnings, Warning{Kind: "variable-name-is-stopword", Subject: name})
		}
	}
	return warnings
}
