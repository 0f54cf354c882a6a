// Package registry implements the content-addressed byte store that
// backs `fardreg`: RunID-keyed blobs written via temp-file-then-rename so
// readers never observe a partially written entry.
package registry

import (
	"os"
	"path/filepath"

	"github.com/mauludsadiq/fard/internal/digest"
	"github.com/mauludsadiq/fard/internal/ferr"
)

// Store is a directory-backed content-addressed registry.
type Store struct {
	Dir string
}

// Open validates dir exists (creating it if absent) and returns a Store
// rooted there. The directory is typically FARD_REGISTRY_DIR.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ferr.Wrap(ferr.ErrRegistry, err, "creating registry directory %s", dir)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) pathFor(runID string) (string, error) {
	hexPart, err := digest.ParseCID(runID)
	if err != nil {
		return "", ferr.Wrap(ferr.ErrRegistry, err, "invalid RunID %q", runID)
	}
	return filepath.Join(s.Dir, "sha256", hexPart+".bin"), nil
}

// Put stores data under its own content digest after verifying that the
// caller's claimed RunID matches it. Writes go to a
// temp file in the same directory and are renamed into place, so a
// concurrent Get never observes a partial write.
func (s *Store) Put(runID string, data []byte) error {
	want := digest.CID(data)
	if want != runID {
		return ferr.New(ferr.ErrRegistry, "content digest %s does not match claimed RunID %s", want, runID)
	}
	path, err := s.pathFor(runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferr.Wrap(ferr.ErrRegistry, err, "creating registry shard directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return ferr.Wrap(ferr.ErrRegistry, err, "creating temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ferr.Wrap(ferr.ErrRegistry, err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ferr.Wrap(ferr.ErrRegistry, err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return ferr.Wrap(ferr.ErrRegistry, err, "renaming temp file into place")
	}
	return nil
}

// Get reads the bytes stored for runID. A missing entry is
// ERROR_MISSING_FACT, matching the registry's role as the fact-lookup
// collaborator the bundle runner's Gate-3 precedence check depends on.
func (s *Store) Get(runID string) ([]byte, error) {
	path, err := s.pathFor(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferr.New(ferr.ErrMissingFact, "no registry entry for %s", runID)
		}
		return nil, ferr.Wrap(ferr.ErrRegistry, err, "reading registry entry")
	}
	return data, nil
}

// Has reports whether runID is present without reading its contents.
func (s *Store) Has(runID string) bool {
	path, err := s.pathFor(runID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
