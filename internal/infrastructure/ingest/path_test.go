package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TripMatch/pkg/errors"
)

func TestResolveDataFile(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator), "data")

	tests := []struct {
		name        string
		dir         string
		defaultFile string
		file        string
		want        string
		wantErr     bool
	}{
		{name: "default", dir: dir, defaultFile: "users.csv", want: "users.csv"},
		{name: "no default", dir: dir, wantErr: true},
		{name: "named", dir: dir, file: "july.csv", want: filepath.Join(dir, "july.csv")},
		{name: "nested", dir: dir, file: "2024/july.csv", want: filepath.Join(dir, "2024", "july.csv")},
		{name: "traversal clamped", dir: dir, file: "../../etc/passwd", want: filepath.Join(dir, "etc", "passwd")},
		{name: "named without dir", file: "july.csv", defaultFile: "users.csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDataFile(tt.dir, tt.defaultFile, tt.file)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

//Personal.AI order the ending
