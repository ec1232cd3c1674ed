package telemetry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// dumpMarker tags a directory created by NewFilesystemOutput, only tagged or
// empty directories are ever cleared.
const dumpMarker = ".posheet-dump"

var ErrDumpDirInUse = errors.New("dump directory is not empty and was not created by posheet")

// FilesystemOutput writes every dumped HTTP message into its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears `dir` and prepares it to receive HTTP message
// dumps. It refuses a non-empty directory that does not carry the dump marker.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return FilesystemOutput{}, err
	}
	if len(entries) > 0 {
		_, err = os.Stat(filepath.Join(dir, dumpMarker))
		if errors.Is(err, fs.ErrNotExist) {
			return FilesystemOutput{}, fmt.Errorf("%w: %s", ErrDumpDirInUse, dir)
		}
		if err != nil {
			return FilesystemOutput{}, err
		}
		err = os.RemoveAll(dir)
		if err != nil {
			return FilesystemOutput{}, err
		}
	}

	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.WriteFile(filepath.Join(dir, dumpMarker), nil, 0600)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
