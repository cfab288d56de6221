package cfdi

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsXMLName reports whether a file name has an .xml extension (any case).
func IsXMLName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xml")
}

// LoadPaths reads the given files and directories into documents. Directories
// are walked recursively and only .xml files are taken from them; explicit file
// arguments are always read. Documents are named by their base file name, the
// same identifier an upload would carry.
func LoadPaths(paths []string) ([]Document, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("LoadPaths: stat %q: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			// Ignore dot-underscore files created by macOS
			if d.IsDir() || strings.HasPrefix(d.Name(), "._") || !IsXMLName(d.Name()) {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("LoadPaths: walk %q: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	docs := make([]Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("LoadPaths: read %q: %w", f, err)
		}
		docs = append(docs, Document{Name: filepath.Base(f), Data: data})
	}

	return docs, nil
}
