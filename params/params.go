package params

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const DefaultRoot = "/data/params"

// Session toggles.
const (
	EnableMads          = "EnableMads"
	TeslaMadsAccFirst   = "TeslaMadsAccFirst"
	TeslaMadsCombo      = "TeslaMadsCombo"
	TeslaTorqueBlending = "TeslaTorqueBlending"
	TeslaLongControl    = "TeslaLongControl"
	TeslaEnableBsm      = "TeslaEnableBsm"
)

var Known = []string{
	EnableMads,
	TeslaMadsAccFirst,
	TeslaMadsCombo,
	TeslaTorqueBlending,
	TeslaLongControl,
	TeslaEnableBsm,
}

// Params is an openpilot style params directory: one file per key under
// <root>/d, written atomically under a lock file in <root>.
type Params struct {
	root string
}

func New(root string) *Params {
	return &Params{root: root}
}

func (p *Params) Dir() string {
	return filepath.Join(p.root, "d")
}

func (p *Params) Path(key string) string {
	return filepath.Join(p.Dir(), key)
}

func (p *Params) EnsureDirectories() error {
	if err := os.MkdirAll(p.Dir(), 0o775); err != nil {
		return errors.Wrap(err, "could not make params directory")
	}
	return nil
}

// Exists returns whether the given file or directory exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "could not check param file stats")
}

func IsString(data []byte) bool {
	for _, b := range data {
		if (b < 32 || b > 126) && !(b == 9 || b == 13 || b == 10) {
			return false
		}
	}
	return true
}

// Keys lists the params currently stored.
func (p *Params) Keys() ([]string, error) {
	files, err := os.ReadDir(p.Dir())
	if err != nil {
		return nil, errors.Wrap(err, "could not read params directory")
	}

	keys := []string{}
	for _, file := range files {
		name := file.Name()
		if file.Type().IsRegular() && name[0] != '.' {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (p *Params) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(p.Path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read param %s", key)
	}
	return data, nil
}

// GetBool reads a "1"/"0" toggle. Missing or unreadable params are false.
func (p *Params) GetBool(key string) bool {
	data, err := os.ReadFile(p.Path(key))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func (p *Params) PutBool(key string, v bool) error {
	if v {
		return p.Put(key, []byte("1"))
	}
	return p.Put(key, []byte("0"))
}

func (p *Params) Put(key string, data []byte) error {
	path := p.Path(key)
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, ".tmp_value_"+key)
	if err != nil {
		return errors.Wrap(err, "could not create temp param file")
	}
	tmpName := file.Name()
	defer os.Remove(tmpName)

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		return errors.Wrap(err, "could not write data to temp param file")
	}
	err = file.Sync()
	if err != nil {
		file.Close()
		return errors.Wrap(err, "could not fsync temp param file")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "could not close temp param file")
	}

	return p.withLock(func() error {
		if err := os.Rename(tmpName, path); err != nil {
			return errors.Wrap(err, "could not move temp param file to persistent location")
		}
		return syncDir(dir)
	})
}

func (p *Params) Remove(key string) error {
	path := p.Path(key)
	return p.withLock(func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove param %s", key)
		}
		return syncDir(filepath.Dir(path))
	})
}

func (p *Params) withLock(fn func() error) error {
	lockPath := filepath.Join(p.root, ".lock")
	fileLock := flock.New(lockPath)

	retries := 0
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrap(err, "could not try locking params directory")
		}
		if locked {
			break
		}
		retries += 1
		if retries > 30 {
			// try to force the lock to be removed
			if err := os.Remove(lockPath); err != nil {
				slog.Debug("failed to force delete params lock", "error", err)
			}
		}
		if retries > 50 {
			return errors.New("could not obtain lock")
		}
		// if we didn't obtain the lock let's try again after a short delay
		time.Sleep(1 * time.Millisecond)
	}
	defer func() {
		if err := os.Remove(lockPath); err != nil {
			slog.Error("could not remove params lock file", "error", err)
		}
	}()
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			slog.Error("could not unlock params directory", "error", err)
		}
	}()

	return fn()
}

func syncDir(dir string) error {
	directory, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "could not open params directory")
	}
	defer directory.Close()

	if err := directory.Sync(); err != nil {
		return errors.Wrap(err, "could not fsync params directory")
	}
	return nil
}
