package upload

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/helixbio/portal-submit/internal/models"
	"github.com/helixbio/portal-submit/internal/rclone"
)

// SearchConfig describes where to look for local copies of upload
// targets and the optional cloud source to fall back to.
type SearchConfig struct {
	// Directory is the main search root. Empty means no main search.
	Directory string
	// Recursive walks subdirectories of Directory and collects every
	// match; multiple matches flag the target as ambiguous.
	Recursive bool
	// Fallbacks are searched non-recursively, first match wins, when
	// the main search finds nothing. Defaults to ["."] only when no
	// explicit fallbacks were given.
	Fallbacks []string
	// CloudSource, when set, is probed for targets not found locally
	// (and for local targets, to offer a source choice).
	CloudSource *rclone.Store
}

// Resolve builds the FileForUpload for one Portal upload target. A
// target with an empty filename resolves to nil.
func Resolve(target models.UploadInfo, cfg SearchConfig) *FileForUpload {
	name := filepath.Base(target.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil
	}

	f := &FileForUpload{
		Name:          name,
		UUID:          target.UUID,
		Type:          target.Type,
		Accession:     target.Accession,
		AccessionName: accessionName(target, name),
		cloudSource:   cfg.CloudSource,
	}

	matches := searchMain(cfg.Directory, name, cfg.Recursive)
	if len(matches) == 0 {
		fallbacks := cfg.Fallbacks
		if len(fallbacks) == 0 {
			fallbacks = []string{"."}
		}
		if match := searchFallbacks(fallbacks, name); match != "" {
			matches = []string{match}
		}
	}

	if len(matches) > 0 {
		f.LocalPath = matches[0]
	}
	if len(matches) > 1 {
		f.LocalPaths = matches
	}
	return f
}

// ResolveAll resolves a batch of targets against one search config.
func ResolveAll(targets []models.UploadInfo, cfg SearchConfig) []*FileForUpload {
	files := make([]*FileForUpload, 0, len(targets))
	for _, target := range targets {
		if f := Resolve(target, cfg); f != nil {
			files = append(files, f)
		}
	}
	return files
}

// accessionName is the accession-based filename for the target: the
// accession carrying the target filename's suffix chain.
func accessionName(target models.UploadInfo, name string) string {
	if target.AccessionName != "" || target.Accession == "" {
		return target.AccessionName
	}
	if i := strings.Index(name, "."); i >= 0 {
		return target.Accession + name[i:]
	}
	return target.Accession
}

// searchMain looks for name under dir, walking subdirectories when
// recursive. Every match is collected so ambiguity can be flagged.
func searchMain(dir, name string, recursive bool) []string {
	if dir == "" {
		return nil
	}
	if !recursive {
		candidate := filepath.Join(dir, name)
		if validLocalFile(candidate, name) {
			return []string{candidate}
		}
		return nil
	}

	var matches []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; keep walking the rest.
			return nil
		}
		if !d.IsDir() && d.Name() == name && validLocalFile(path, name) {
			matches = append(matches, path)
		}
		return nil
	})
	return matches
}

// searchFallbacks checks each directory non-recursively and returns the
// first match.
func searchFallbacks(dirs []string, name string) string {
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		candidate := filepath.Join(dir, name)
		if validLocalFile(candidate, name) {
			return candidate
		}
	}
	return ""
}
