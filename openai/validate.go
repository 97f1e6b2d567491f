package openai

import (
	"os"
	"path/filepath"
	"strings"
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	AudioExtensions = []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm"}
)

// ValidateLocalFile checks that path is an existing regular file whose
// extension is in allowed (case-insensitive). A nil allowed accepts any
// extension.
func ValidateLocalFile(path string, allowed []string) error {
	if strings.TrimSpace(path) == "" {
		return Validationf("file path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Validationf("file %s not found", path)
	}
	if info.IsDir() {
		return Validationf("%s is a directory", path)
	}
	if allowed == nil {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return Validationf("file %s has unsupported extension %q (allowed: %s)", path, ext, strings.Join(allowed, ", "))
}

func ValidateImagePaths(paths []string) error {
	for _, p := range paths {
		if err := ValidateLocalFile(p, ImageExtensions); err != nil {
			return err
		}
	}
	return nil
}
