package keyword

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
)

// Systems recognised in keyword model filenames.
const (
	SystemLinux       = "linux"
	SystemRaspberryPi = "raspberry-pi"
)

// DetectSystem picks the platform tag for the running machine: raspberry-pi
// on ARM, linux otherwise.
func DetectSystem() string {
	arch := strings.ToLower(runtime.GOARCH)
	if strings.Contains(arch, "arm") || strings.Contains(arch, "aarch") {
		return SystemRaspberryPi
	}
	return SystemLinux
}

// Discover scans dataDir and the custom keyword directories for keyword
// models matching system and returns the resulting [Set].
//
// Layout under dataDir:
//
//	lib/common/*.pv          language parameter files, language is the last
//	                         underscore-separated token of the stem
//	resources/<lang>/.../<name>_<system>.ppn
//
// Custom directories hold files named <name>_<lang>_<system>_<version>.ppn.
// Custom directories are scanned after the built-ins, so on a duplicate name
// the custom model wins (last discovered wins).
func Discover(dataDir string, customDirs []string, system string) (*Set, error) {
	set := &Set{
		keywords: make(map[string]Keyword),
		libPaths: make(map[string]string),
	}

	// Language parameter libraries.
	libGlob := filepath.Join(dataDir, "lib", "common", "*.pv")
	libs, err := filepath.Glob(libGlob)
	if err != nil {
		return nil, fmt.Errorf("keyword: glob %q: %w", libGlob, err)
	}
	for _, libPath := range libs {
		stem := stemOf(libPath)
		parts := strings.Split(stem, "_")
		lang := parts[len(parts)-1]
		set.libPaths[lang] = libPath
	}

	// Built-in models: resources/<lang>/**/<name>_<system>.ppn.
	resourceDir := filepath.Join(dataDir, "resources")
	err = filepath.WalkDir(resourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".ppn") {
			return nil
		}

		stem := stemOf(path)
		idx := strings.LastIndex(stem, "_")
		if idx < 0 {
			return nil
		}
		if stem[idx+1:] != system {
			return nil
		}

		name := stem[:idx]
		lang := filepath.Base(filepath.Dir(filepath.Dir(path)))
		set.keywords[name] = Keyword{Name: name, Language: lang, ModelPath: path}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keyword: scan %q: %w", resourceDir, err)
	}

	// Custom models: <name>_<lang>_<system>_<version>.ppn.
	for _, dir := range customDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.ppn"))
		if err != nil {
			return nil, fmt.Errorf("keyword: glob custom dir %q: %w", dir, err)
		}
		for _, path := range matches {
			parts := strings.SplitN(stemOf(path), "_", 4)
			if len(parts) < 4 {
				slog.Warn("ignoring custom keyword with unexpected filename", "path", path)
				continue
			}
			name, lang, kwSystem := parts[0], parts[1], parts[2]
			if kwSystem != system {
				slog.Warn("ignoring custom keyword for other system",
					"path", path,
					"system", kwSystem,
				)
				continue
			}
			set.keywords[name] = Keyword{Name: name, Language: lang, ModelPath: path}
		}
	}

	return set, nil
}

// stemOf returns the file name without directory or extension.
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
