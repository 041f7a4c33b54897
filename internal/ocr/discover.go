package ocr

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
)

var commonBinaryPaths = []string{
	"/usr/bin/tesseract",
	"/usr/local/bin/tesseract",
	"/opt/homebrew/bin/tesseract",
	"/usr/bin/tesseract-ocr",
	"/app/bin/tesseract",
	"/app/.apt/usr/bin/tesseract",
}

var commonTessdataDirs = []string{
	"/usr/share/tesseract-ocr/5/tessdata",
	"/usr/share/tesseract-ocr/4.00/tessdata",
	"/usr/share/tesseract-ocr/tessdata",
	"/usr/share/tessdata",
	"/usr/local/share/tessdata",
	"/opt/homebrew/share/tessdata",
	"/app/share/tesseract-ocr/tessdata",
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// DiscoverBinary resolves the tesseract executable: the configured path if it
// is executable, then $PATH, then well known install locations.
func DiscoverBinary(configured string) (string, error) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, nil
		}
		if p, err := lookPath(configured); err == nil {
			return p, nil
		}
	}
	if p, err := lookPath("tesseract"); err == nil {
		return p, nil
	}
	for _, p := range commonBinaryPaths {
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", common.NewAppError(constants.ErrCodeEngineUnavailable, "tesseract binary not found", common.ErrEngineUnavailable)
}

// DiscoverTessdata returns the first directory containing <lang>.traineddata,
// preferring configured. Empty means let tesseract use its compiled default.
func DiscoverTessdata(configured, lang string) string {
	if lang == "" {
		lang = "eng"
	}
	candidates := make([]string, 0, len(commonTessdataDirs)+2)
	if configured != "" {
		// TESSDATA_PREFIX may point at the tessdata dir or its parent
		candidates = append(candidates, configured, filepath.Join(configured, "tessdata"))
	}
	candidates = append(candidates, commonTessdataDirs...)
	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, lang+".traineddata")) {
			return dir
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
