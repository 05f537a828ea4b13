package artifact

import (
	"bytes"
	"context"
	"crypto"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/swzo/brassworks-updater/internal/config"
	"github.com/swzo/brassworks-updater/internal/logger"

	// Ensure SHA512 available for checksum verification.
	_ "crypto/sha512"
)

const (
	// PayloadPath is the location of the updater inside the embedded filesystem.
	PayloadPath = "updater/" + config.ExecutableName
	// ChecksumPath is the optional base64 SHA-512 sidecar of the payload.
	ChecksumPath = PayloadPath + ".sha512"

	// ExecutableMode is applied to the staged file.
	ExecutableMode os.FileMode = 0o755

	// checksumFunction hashes the payload for sidecar verification.
	checksumFunction = crypto.SHA512

	goupdateChecksumMessage = "wrong checksum"
)

// ErrMissingResource means the binary was built without a usable payload.
var ErrMissingResource = errors.New("bundled updater is missing")

//go:embed all:updater
var bundled embed.FS

// Extractor copies the bundled payload out of a filesystem.
type Extractor struct {
	fsys fs.FS
}

// NewExtractor returns an Extractor reading from fsys; nil means the embedded payload.
func NewExtractor(fsys fs.FS) *Extractor {
	if fsys == nil {
		fsys = bundled
	}

	return &Extractor{fsys: fsys}
}

// Extract copies the payload to stagingDir/config.ExecutableName, replacing any
// file already there, and returns the destination path.
func (e *Extractor) Extract(ctx context.Context, stagingDir string) (string, error) {
	payload, err := fs.ReadFile(e.fsys, PayloadPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingResource, PayloadPath)
		}

		return "", fmt.Errorf("read bundled updater: %w", err)
	}

	checksum, err := e.checksum(ctx)
	if err != nil {
		return "", err
	}

	target := filepath.Join(stagingDir, config.ExecutableName)

	// go-update swaps the old file out, so the target has to exist first.
	created := false
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		placeholder, err = os.Create(filepath.Clean(target))
		if err != nil {
			return "", fmt.Errorf("create staged updater: %w", err)
		}

		_ = placeholder.Close()
		created = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: ExecutableMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(payload), options); err != nil {
		if created {
			_ = os.Remove(target)
		}

		if checksum != nil && isChecksumMismatch(err) {
			return "", fmt.Errorf("%w: %s: %w", ErrMissingResource, PayloadPath, err)
		}

		return "", fmt.Errorf("stage updater: %w", err)
	}

	// Apply honors the umask on creation; the runtime still needs the exec bit.
	if err = os.Chmod(target, ExecutableMode); err != nil {
		return "", fmt.Errorf("mark staged updater executable: %w", err)
	}

	logger.DebugKV(ctx, "Staged bundled updater", "path", target, "bytes", len(payload))

	return target, nil
}

// checksum decodes the bundled sidecar. A nil result means none is bundled.
func (e *Extractor) checksum(ctx context.Context) ([]byte, error) {
	encoded, err := fs.ReadFile(e.fsys, ChecksumPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug(ctx, "No checksum bundled, skipping verification")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read bundled checksum: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMissingResource, path.Base(ChecksumPath), err)
	}

	return decoded, nil
}

// isChecksumMismatch recognizes go-update's verification failure, which it
// reports without a sentinel.
func isChecksumMismatch(err error) bool {
	return strings.Contains(err.Error(), goupdateChecksumMessage)
}
