package ingest

import (
	"path/filepath"
	"strings"

	"github.com/turtacn/TripMatch/pkg/errors"
)

// ResolveDataFile picks the table a training request reads. An empty name
// selects defaultFile. A named file is resolved inside dir and may not
// escape it; an empty dir rejects named files.
func ResolveDataFile(dir, defaultFile, name string) (string, error) {
	if name == "" {
		if defaultFile == "" {
			return "", errors.New(errors.ErrCodeValidation, "no records, file or configured data file to train on")
		}
		return defaultFile, nil
	}
	if dir == "" {
		return "", errors.New(errors.ErrCodeValidation, "training from a named file is disabled")
	}
	path := filepath.Join(dir, filepath.Clean("/"+name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.New(errors.ErrCodeValidation, "file must be inside the data directory").WithDetail(name)
	}
	return path, nil
}

//Personal.AI order the ending
