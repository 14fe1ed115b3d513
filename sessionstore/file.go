package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/pkg/errors"
)

var _ BatchSlots = (*FileSlots)(nil)

// FileSlots stores all slots of a namespace in one JSON document. Every write
// replaces the document through a rename, so a reader never sees a half
// written record.
type FileSlots struct {
	path string
	lock sync.Mutex
}

// NewFileSlots creates the private parent directory of path if needed.
func NewFileSlots(path string) (*FileSlots, error) {
	if path == "" {
		return nil, errors.New("[sessionstore.NewFileSlots] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[sessionstore.NewFileSlots] mkdir")
	}
	return &FileSlots{path: path}, nil
}

// Path returns the document location.
func (f *FileSlots) Path() string {
	return f.path
}

func (f *FileSlots) Get(key string) (string, bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// GetAll reads the document once, so the values come from a single save.
func (f *FileSlots) GetAll(keys []string) (map[string]string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *FileSlots) Put(key, value string) error {
	return f.Apply(map[string]string{key: value}, nil)
}

func (f *FileSlots) Delete(key string) error {
	return f.Apply(nil, []string{key})
}

func (f *FileSlots) Apply(puts map[string]string, deletes []string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		// A corrupt document is overwritten rather than merged.
		values = map[string]string{}
	}
	for k, v := range puts {
		values[k] = v
	}
	for _, k := range deletes {
		delete(values, k)
	}
	return f.write(values)
}

func (f *FileSlots) read() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrap(err, "[FileSlots.read] read session file")
	}
	if len(b) == 0 {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, errors.Wrap(interrors.ErrCorruptRecord, "[FileSlots.read] "+err.Error())
	}
	return values, nil
}

func (f *FileSlots) write(values map[string]string) error {
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "[FileSlots.write] remove session file")
		}
		return nil
	}

	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileSlots.write] encode")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "[FileSlots.write] create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileSlots.write] chmod")
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileSlots.write] write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileSlots.write] sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileSlots.write] close")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(err, "[FileSlots.write] rename")
	}
	return nil
}
