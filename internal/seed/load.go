package seed

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

var DefaultPatterns = []string{"**/*.yaml", "**/*.yml"}

// Parse decodes one YAML bundle. UTF-8 and UTF-16 input with a byte order
// mark is accepted; input without a BOM is read as UTF-8.
func Parse(r io.Reader) (*Bundle, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var b Bundle
	dec := yaml.NewDecoder(decoded)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if err == io.EOF {
			return &b, nil
		}
		return nil, err
	}
	return &b, nil
}

func ParseFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Match reports whether rel (slash separated, relative to the seed root)
// matches one of include and none of ignore.
func Match(rel string, include, ignore []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// LoadDir merges every matching file under dir in lexical path order and
// validates the merged bundle.
func LoadDir(dir string, include, ignore []string) (*Bundle, []string, error) {
	if len(include) == 0 {
		include = DefaultPatterns
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if Match(rel, include, ignore) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)

	merged := &Bundle{}
	for _, path := range files {
		b, err := ParseFile(path)
		if err != nil {
			return nil, nil, err
		}
		merged.Merge(b)
	}

	if err := merged.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid catalog in %s: %w", dir, err)
	}
	return merged, files, nil
}
