package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/davidahmann/modelgate/core/jcs"
)

const (
	SchemaID = "modelgate.evidence_digest"
	SchemaV1 = "1.0.0"
)

type FileInfo struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

type Manifest struct {
	SchemaID       string     `json:"schema_id"`
	SchemaVersion  string     `json:"schema_version"`
	Files          []FileInfo `json:"files"`
	ManifestDigest string     `json:"manifest_digest"`
}

// Digest hashes each listed artifact in order. A missing file is recorded with
// exists=false; any other read failure is an error. The manifest digest is the
// JCS digest of the files list, so it does not depend on modification times.
func Digest(paths []string) (Manifest, error) {
	files := make([]FileInfo, 0, len(paths))
	for _, path := range paths {
		info, err := describe(path)
		if err != nil {
			return Manifest{}, err
		}
		files = append(files, info)
	}
	digest, err := jcs.DigestValue(files)
	if err != nil {
		return Manifest{}, fmt.Errorf("digest manifest: %w", err)
	}
	return Manifest{
		SchemaID:       SchemaID,
		SchemaVersion:  SchemaV1,
		Files:          files,
		ManifestDigest: digest,
	}, nil
}

func describe(path string) (FileInfo, error) {
	// #nosec G304 -- artifact paths are explicit local user input.
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{Path: path, Exists: false}, nil
		}
		return FileInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory", path)
	}
	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return FileInfo{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return FileInfo{
		Path:      path,
		Exists:    true,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
