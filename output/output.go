package output

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	LOCK_SUFFIX       = ".lock"
	LOCK_RETRIES      = 50
	LOCK_FORCE_AFTER  = 30
	LOCK_RETRY_DELAY  = 1 * time.Millisecond
	DEFAULT_FILE_MODE = 0o644
)

// exists returns whether the given file or directory exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "could not check output file stats")
}

func LockPath(path string) string {
	return path + LOCK_SUFFIX
}

// Lock takes the advisory lock guarding path.
func Lock(path string) (*flock.Flock, error) {
	fileLock := flock.New(LockPath(path))

	retries := 0
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, errors.Wrap(err, "could not try locking output file")
		}
		if locked {
			return fileLock, nil
		}
		retries += 1
		if retries > LOCK_FORCE_AFTER {
			// a crashed writer can leave the lock behind
			if err := os.Remove(LockPath(path)); err != nil {
				slog.Debug("failed to force delete output lock", "error", err, "path", path)
			}
		}
		if retries > LOCK_RETRIES {
			return nil, errors.Errorf("could not obtain lock for %s", path)
		}
		time.Sleep(LOCK_RETRY_DELAY)
	}
}

func Unlock(fileLock *flock.Flock) {
	if err := fileLock.Unlock(); err != nil {
		slog.Error("could not unlock output file", "error", err)
	}
	if err := os.Remove(fileLock.Path()); err != nil && !os.IsNotExist(err) {
		slog.Error("could not remove output lock file", "error", err)
	}
}

// WriteFile replaces path with data. The data is written to a temp file next
// to path and renamed into place while holding the path's lock, so readers
// never see a partial file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, ".tmp_"+filepath.Base(path))
	if err != nil {
		return errors.Wrap(err, "could not create temp output file")
	}
	tmpName := file.Name()
	defer os.Remove(tmpName)

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		return errors.Wrap(err, "could not write data to temp output file")
	}

	err = file.Sync()
	if err != nil {
		file.Close()
		return errors.Wrap(err, "could not fsync temp output file")
	}

	err = file.Chmod(DEFAULT_FILE_MODE)
	if err != nil {
		file.Close()
		return errors.Wrap(err, "could not set output file mode")
	}

	err = file.Close()
	if err != nil {
		return errors.Wrap(err, "could not close temp output file")
	}

	fileLock, err := Lock(path)
	if err != nil {
		return err
	}
	defer Unlock(fileLock)

	err = os.Rename(tmpName, path)
	if err != nil {
		return errors.Wrap(err, "could not move temp output file to final location")
	}

	directory, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "could not open output directory")
	}
	defer directory.Close()

	err = directory.Sync()
	if err != nil {
		return errors.Wrap(err, "could not fsync output directory")
	}

	return nil
}

func Remove(path string) error {
	fileLock, err := Lock(path)
	if err != nil {
		return err
	}
	defer Unlock(fileLock)

	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not remove output file")
	}
	return nil
}
