package share

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuttiproject/workspace"
)

// Buffer size for individual file copies, chosen to move multi-gigabyte
// disk images in large chunks.
const copybuffersize = 524288000

// CopyDir recursively copies the tree rooted at src into dst, creating
// dst and any subdirectories as needed.
func CopyDir(src string, dst string) error {
	srcinfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("could not read source '%s': %v", src, err)
	}
	if !srcinfo.IsDir() {
		return fmt.Errorf("source '%s' is not a directory", src)
	}

	err = os.MkdirAll(dst, 0755)
	if err != nil {
		return fmt.Errorf("could not create destination '%s': %v", dst, err)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relpath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, relpath)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		return workspace.CopyFile(path, target, copybuffersize, true)
	})
}

// DirSize returns the total size in bytes of all files under path,
// summed recursively.
func DirSize(path string) (int64, error) {
	var total int64

	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not measure '%s': %v", path, err)
	}

	return total, nil
}

// FilesWithExt returns the paths of all files under dir whose name has
// the given extension, compared case-insensitively.
func FilesWithExt(dir string, ext string) ([]string, error) {
	var matches []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not enumerate '%s': %v", dir, err)
	}

	return matches, nil
}

// Purge deletes every entry directly under root whose name matches
// pattern (a filepath.Match pattern), recursively. Deletion failures do
// not stop the loop; they are returned as warnings for the caller to
// report. The returned slice holds the paths that were removed.
func Purge(root string, pattern string) (removed []string, warnings []error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		// Nothing to purge if the root cannot be read.
		return nil, []error{fmt.Errorf("could not list '%s': %v", root, err)}
	}

	for _, entry := range entries {
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil || !matched {
			continue
		}

		target := filepath.Join(root, entry.Name())
		err = os.RemoveAll(target)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("could not delete '%s': %v", target, err))
			continue
		}
		removed = append(removed, target)
	}

	return removed, warnings
}

// ZipDir creates a zip archive at zippath containing the tree rooted at
// src. Entry names are relative to src, using forward slashes.
func ZipDir(src string, zippath string) error {
	zipfile, err := os.Create(zippath)
	if err != nil {
		return fmt.Errorf("could not create archive '%s': %v", zippath, err)
	}
	defer zipfile.Close()

	zw := zip.NewWriter(zipfile)

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relpath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(relpath))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("could not archive '%s': %v", src, err)
	}

	return zw.Close()
}
