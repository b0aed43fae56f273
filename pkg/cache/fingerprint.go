package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"taskinfer/pkg/discoverer"
)

// Fingerprint identifies the inputs target inference depends on
type Fingerprint string

// ComputeFingerprint hashes, in order: every file under projectRoot (sorted by
// relative path, path and content), each of extraFiles that exists (typically
// the lockfile), and the JSON form of options. All components are length
// prefixed.
func ComputeFingerprint(fs afero.Fs, workspaceRoot, projectRoot string, options any, extraFiles []string) (Fingerprint, error) {
	h := sha256.New()

	projectDir := filepath.Join(workspaceRoot, filepath.FromSlash(projectRoot))
	files, err := projectFiles(fs, projectDir)
	if err != nil {
		return "", err
	}

	writeField(h, []byte("project:"+filepath.ToSlash(projectRoot)))
	for _, rel := range files {
		if err := hashFile(h, fs, filepath.Join(projectDir, filepath.FromSlash(rel)), rel); err != nil {
			return "", err
		}
	}

	for _, extra := range extraFiles {
		abs := filepath.Join(workspaceRoot, filepath.FromSlash(extra))
		exists, err := afero.Exists(fs, abs)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", abs, err)
		}
		if !exists {
			writeField(h, []byte("missing:"+extra))
			continue
		}
		if err := hashFile(h, fs, abs, "extra:"+extra); err != nil {
			return "", err
		}
	}

	opts, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to encode options: %w", err)
	}
	writeField(h, opts)

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// projectFiles lists regular files below dir, skipping hidden directories,
// installed dependencies and build output, as sorted slash paths relative to dir
func projectFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if info.IsDir() {
			if path != dir && (strings.HasPrefix(info.Name(), ".") || discoverer.IsSkippableDir(info.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func hashFile(h hash.Hash, fs afero.Fs, abs, label string) error {
	f, err := fs.Open(abs)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", abs, err)
	}
	defer f.Close()

	content := sha256.New()
	if _, err := io.Copy(content, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", abs, err)
	}
	writeField(h, []byte(label))
	writeField(h, content.Sum(nil))
	return nil
}

func writeField(h hash.Hash, data []byte) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(data)))
	h.Write(size[:])
	h.Write(data)
}
