package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	processedDirName = "processed"
	failedDirName    = "failed"
)

// InboxActions handles the file system side of the upload inbox: reading
// dropped PDFs and moving them aside once they have been handled.
type InboxActions struct {
	Dir          string // absolute path of the inbox
	ProcessedDir string
	FailedDir    string
}

func NewInboxActions(dir string) (*InboxActions, error) {
	if dir == "" {
		return nil, fmt.Errorf("inbox directory not set")
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for inbox %q: %w", dir, err)
	}
	fa := &InboxActions{
		Dir:          absPath,
		ProcessedDir: filepath.Join(absPath, processedDirName),
		FailedDir:    filepath.Join(absPath, failedDirName),
	}
	for _, d := range []string{fa.Dir, fa.ProcessedDir, fa.FailedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create inbox directory %s: %w", d, err)
		}
	}
	return fa, nil
}

// sanitizeFilename ensures the file is a PDF directly inside the inbox.
func (fa *InboxActions) sanitizeFilename(filename string) (string, error) {
	if !isPDFFilename(filename) {
		return "", fmt.Errorf("filename must end with .pdf")
	}
	// This prevents path traversal (e.g. filename = "../../../etc/passwd.pdf")
	cleanPath := filepath.Join(fa.Dir, filepath.Base(filename))
	if !strings.HasPrefix(cleanPath, fa.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid filename, attempts to escape inbox directory")
	}
	return cleanPath, nil
}

// ReadPDF returns the contents of an inbox file.
func (fa *InboxActions) ReadPDF(filename string) ([]byte, error) {
	path, err := fa.sanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// MarkProcessed moves an ingested file to the processed directory.
func (fa *InboxActions) MarkProcessed(filename string) (string, error) {
	return fa.moveTo(filename, fa.ProcessedDir)
}

// MarkFailed moves a file that could not be ingested to the failed directory
// and writes the reason next to it.
func (fa *InboxActions) MarkFailed(filename string, reason error) (string, error) {
	dest, err := fa.moveTo(filename, fa.FailedDir)
	if err != nil {
		return "", err
	}
	if reason != nil {
		if werr := os.WriteFile(dest+".error.txt", []byte(reason.Error()+"\n"), 0o644); werr != nil {
			return dest, fmt.Errorf("write failure reason for %s: %w", filename, werr)
		}
	}
	return dest, nil
}

func (fa *InboxActions) moveTo(filename, dir string) (string, error) {
	src, err := fa.sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.Base(src))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(dir, time.Now().UTC().Format("20060102T150405.000000000")+"-"+filepath.Base(src))
	}
	if err := os.Rename(src, dest); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filename, dir, err)
	}
	return dest, nil
}

func isPDFFilename(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
