package fs

import (
	"os"
	"path/filepath"
)

// OS is the native operating-system filesystem capability.
type OS struct{}

var _ FS = OS{}

func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OS) Metadata(path string) (Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrNotExist
		}
		return Metadata{}, err
	}
	return Metadata{IsFile: fi.Mode().IsRegular(), IsDir: fi.IsDir(), Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (OS) SymlinkMetadata(path string) (Metadata, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrNotExist
		}
		return Metadata{}, err
	}
	return Metadata{
		IsFile:    fi.Mode().IsRegular(),
		IsDir:     fi.IsDir(),
		IsSymlink: fi.Mode()&os.ModeSymlink != 0,
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
	}, nil
}

func (OS) ReadLink(path string) (string, error) {
	return os.Readlink(path)
}

func (OS) Canonicalize(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
