package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/tlcomm/internal/compiler"
)

// SourceExt is the extension of kernel source files.
const SourceExt = ".tl"

// LoadResult contains the source files found under an input path.
type LoadResult struct {
	Files []compiler.SourceFile
	Root  string
}

// LoadError represents an error that occurred while finding or reading
// sources.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSources reads a single .tl file, or every .tl file under a directory
// in lexical path order so that kernel order and call IDs are reproducible.
func LoadSources(path string) (*LoadResult, *LoadError) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err)}
	}

	var paths []string
	if info.IsDir() {
		paths, err = FindSourceFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(paths) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no %s files found in %s", SourceExt, path)}
		}
	} else {
		paths = []string{path}
	}

	result := &LoadResult{Root: path, Files: make([]compiler.SourceFile, 0, len(paths))}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", p, err)}
		}
		result.Files = append(result.Files, compiler.SourceFile{Name: p, Data: data})
	}
	return result, nil
}

// FindSourceFiles walks the directory and returns all .tl file paths, sorted.
func FindSourceFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == SourceExt {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
