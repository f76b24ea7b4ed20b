// Package fixtures loads the page-object and shared-object data files steps read from the world.
package fixtures

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fixture is the decoded contents of one data file.
type Fixture map[string]any

// Namespace maps a camel-cased name, derived from the file path, to its fixture.
type Namespace map[string]Fixture

// Get walks a dotted path ("login.selectors.submit") through the namespace.
func (n Namespace) Get(path string) (any, bool) {
	name, rest, _ := strings.Cut(path, ".")
	f, ok := n[name]
	if !ok {
		return nil, false
	}
	if rest == "" {
		return f, true
	}
	return f.Get(rest)
}

// String is Get narrowed to a string.
func (n Namespace) String(path string) string {
	v, ok := n.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Names lists the loaded fixtures in order.
func (n Namespace) Names() []string {
	names := make([]string, 0, len(n))
	for k := range n {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get walks a dotted path through nested maps. yaml.v3 decodes nested mappings as Fixture, jsoniter as map[string]any.
func (f Fixture) Get(path string) (any, bool) {
	var cur any = f
	for _, key := range strings.Split(path, ".") {
		var m map[string]any
		switch v := cur.(type) {
		case Fixture:
			m = v
		case map[string]any:
			m = v
		default:
			return nil, false
		}
		var ok bool
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// String is Get narrowed to a string.
func (f Fixture) String(path string) string {
	v, ok := f.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Name derives the namespace key for a file relative to its root: "checkout/payment-form.yaml" becomes "checkoutPaymentForm".
func Name(rel string) string {
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	return strcase.ToLowerCamel(strings.ReplaceAll(rel, "/", "_"))
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Load reads every data file under dir. A missing dir yields an empty namespace.
func Load(afs afero.Fs, dir string) (Namespace, error) {
	ns := Namespace{}
	if dir == "" {
		return ns, nil
	}
	if _, err := afs.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			return ns, nil
		}
		return nil, fmt.Errorf("failed to stat fixture dir %s: %w", dir, err)
	}

	err := afero.Walk(afs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !supported(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := decode(afs, path)
		if err != nil {
			return err
		}
		name := Name(rel)
		if _, dup := ns[name]; dup {
			return fmt.Errorf("fixture name %q is produced by more than one file under %s", name, dir)
		}
		ns[name] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// LoadShared loads each dir in order into one namespace. Later dirs override earlier ones by name.
func LoadShared(afs afero.Fs, dirs []string) (Namespace, error) {
	merged := Namespace{}
	for _, dir := range dirs {
		ns, err := Load(afs, dir)
		if err != nil {
			return nil, err
		}
		for name, f := range ns {
			merged[name] = f
		}
	}
	return merged, nil
}

func decode(afs afero.Fs, path string) (Fixture, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	f := Fixture{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return f, nil
}
