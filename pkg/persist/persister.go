package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by ReadLimited for files above the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// tempPattern is the pattern for temporary files created by WriteAtomic.
const tempPattern = ".persist-*"

// WriteAtomic writes a file through a temporary sibling and renames it into
// place, so readers never observe a partially written file.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	file, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := file.Name()

	defer func() {
		if err != nil {
			os.Remove(tempName)
		}
	}()

	err = write(file)
	if err != nil {
		file.Close()

		return err
	}

	err = file.Sync()
	if err != nil {
		file.Close()

		return fmt.Errorf("sync %s: %w", tempName, err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", tempName, err)
	}

	err = os.Rename(tempName, path)
	if err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	return nil
}

// ReadLimited opens path and passes it to read. A positive maxSize rejects
// files larger than maxSize bytes with ErrTooLarge.
func ReadLimited(path string, maxSize int64, read func(r io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if maxSize > 0 {
		info, statErr := file.Stat()
		if statErr != nil {
			return fmt.Errorf("stat %s: %w", path, statErr)
		}

		if info.Size() > maxSize {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), maxSize)
		}
	}

	return read(file)
}

// SaveState saves the given state to a file in the specified directory.
// The filename is constructed from the basename and the codec's extension.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	err := WriteAtomic(path, func(w io.Writer) error {
		return codec.Encode(w, state)
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

// LoadState loads state from a file in the specified directory.
// The state parameter must be a pointer to the target struct.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	err := ReadLimited(path, 0, func(r io.Reader) error {
		return codec.Decode(r, state)
	})
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	return nil
}

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the file the persister reads and writes inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes state into dir.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.basename, p.codec, state)
}

// Load reads the state stored in dir.
func (p *Persister[T]) Load(dir string) (*T, error) {
	var state T

	err := LoadState(dir, p.basename, p.codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}
