// Package registry scans the models root for servable artifacts. Nothing is
// cached: every listing request rescans so drop-in files show up immediately.
package registry

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// modelExts are the file extensions served by the model listing. Prefab
// artifacts written by the save endpoint are listed alongside raw weights.
var modelExts = []string{".gguf", ".st", ".prefab"}

// adapterExts are the file extensions served by the adapter listing.
var adapterExts = []string{".lora"}

// ScanModels walks root and returns every model or prefab file, with names
// relative to root and sorted for stable output.
func ScanModels(root string) ([]types.FileInfo, error) {
	return scan(root, modelExts)
}

// ScanAdapters walks root and returns every adapter file.
func ScanAdapters(root string) ([]types.FileInfo, error) {
	return scan(root, adapterExts)
}

func scan(root string, exts []string) ([]types.FileInfo, error) {
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	var files []types.FileInfo
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !hasExt(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, types.FileInfo{
			Name: filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
