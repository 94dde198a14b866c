package common

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// Sha256OfFile streams the file through SHA-256 and returns the hex digest
// together with the file size.
func Sha256OfFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	stat, _ := f.Stat()
	h := sha256.New()
	_, err = io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), stat.Size(), nil
}
