package utils

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

var gzipMagic = []byte{0x1f, 0x8b}

// IsTarGz reports whether file starts with a gzip header. Seed corpora are
// shipped either as directories or as tar.gz blobs.
func IsTarGz(file string) bool {
	f, err := os.Open(file)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(gzipMagic))
	if _, err := f.Read(head); err != nil {
		return false
	}
	return bytes.Equal(head, gzipMagic)
}

// UnpackTarGz extracts a tar.gz archive into dstFolder, which must exist.
func UnpackTarGz(tarGzFile string, dstFolder string) error {
	cmd := exec.Command("tar", "-xzf", tarGzFile, "-C", dstFolder)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to unpack %s: %w: %s", tarGzFile, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
