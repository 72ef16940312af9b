// Package paths converts between project-relative scene paths, absolute
// filesystem paths and asset-relative paths, and backs files up before they
// are overwritten.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// ProjectPrefix marks a scene path as relative to the project file.
const ProjectPrefix = "//"

// Resolver resolves scene paths against a project file. An empty
// ProjectFile means the project is unsaved.
type Resolver struct {
	ProjectFile string
}

// ProjectDir returns the directory holding the project file.
func (r Resolver) ProjectDir() string {
	if r.ProjectFile == "" {
		return ""
	}
	return filepath.Dir(r.ProjectFile)
}

// IsRelative reports whether p carries the project prefix.
func IsRelative(p string) bool {
	return strings.HasPrefix(p, ProjectPrefix)
}

// ToAbsolute strips the project prefix and joins the remainder to the
// project directory. Absolute paths are cleaned and returned unchanged.
// The result is canonical: backslashes become separators and "." or ".."
// elements are resolved, so ToRelative(ToAbsolute(p)) gives back p only
// when p is already canonical (forward slashes, clean). For any other p it
// gives the canonical spelling, which then round-trips unchanged.
func (r Resolver) ToAbsolute(p string) (string, error) {
	if !IsRelative(p) {
		if filepath.IsAbs(p) {
			return filepath.Clean(p), nil
		}
		if r.ProjectFile == "" {
			return "", xperr.IO(nil, "cannot resolve %q: project is not saved", p)
		}
		return filepath.Join(r.ProjectDir(), filepath.FromSlash(p)), nil
	}
	if r.ProjectFile == "" {
		return "", xperr.IO(nil, "cannot resolve %q: project is not saved", p)
	}
	rel := strings.TrimPrefix(p, ProjectPrefix)
	rel = strings.ReplaceAll(rel, `\`, "/")
	return filepath.Join(r.ProjectDir(), filepath.FromSlash(rel)), nil
}

// ToRelative converts an absolute path into a canonical project-relative
// one with forward slashes. When the project is unsaved or the path is
// already relative it is returned as is.
func (r Resolver) ToRelative(p string) string {
	if IsRelative(p) || r.ProjectFile == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(r.ProjectDir(), p)
	if err != nil {
		return p
	}
	return ProjectPrefix + filepath.ToSlash(rel)
}

// AssetRelative expresses target relative to the directory of assetFile,
// always using forward slashes as the asset formats require.
func AssetRelative(assetFile, target string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(assetFile), target)
	if err != nil {
		return "", xperr.IO(err, "relativize %q", target)
	}
	return filepath.ToSlash(rel), nil
}

// FromAsset resolves a path read from an asset file.
func FromAsset(assetFile, rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(filepath.Dir(assetFile), filepath.FromSlash(rel))
}

// BackupName returns the backup file name for path given its modification
// time and a collision counter (0 means no suffix).
func BackupName(path string, mtime time.Time, n int) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	name := fmt.Sprintf("%s_backup_%s", base, mtime.Format("20060102_150405"))
	if n > 0 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	return name + ext
}

// Backup renames an existing file out of the way. It returns the backup path,
// or "" when there was nothing to back up. The rename has completed when
// Backup returns, so a following write never clobbers the old content.
func Backup(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", xperr.IO(err, "stat %s", path)
	}
	for n := 0; ; n++ {
		candidate := BackupName(path, info.ModTime(), n)
		_, err := os.Stat(candidate)
		if err == nil {
			continue
		}
		if !os.IsNotExist(err) {
			return "", xperr.IO(err, "stat %s", candidate)
		}
		if err := os.Rename(path, candidate); err != nil {
			return "", xperr.IO(err, "backup %s", path)
		}
		return candidate, nil
	}
}

// WriteFile writes data to path, backing up any existing file first when
// backup is set. Parent directories are created as needed.
func WriteFile(path string, data []byte, backup bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xperr.IO(err, "create directory for %s", path)
	}
	if backup {
		if _, err := Backup(path); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return xperr.IO(err, "write %s", path)
	}
	return nil
}
