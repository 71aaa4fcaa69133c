package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocanopy/domain/canopy"
	"gocanopy/internal/errors"
)

func sampleObservations() []canopy.Observation {
	return []canopy.Observation{
		{Response: 0.6, Predictor: 1, Group: "dense"},
		{Response: 0.85, Predictor: 2, Group: "dense"},
		{Response: 0.3, Predictor: 1, Group: "sparse"},
	}
}

func TestXlsxRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canopy.xlsx")
	want := sampleObservations()

	require.NoError(t, WriteObservations(path, want))

	got, err := NewDataReader(path).ReadObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Response, got[i].Response, 1e-9)
		assert.InDelta(t, want[i].Predictor, got[i].Predictor, 1e-9)
		assert.Equal(t, want[i].Group, got[i].Group)
	}
}

func TestReadCSV(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "canopy.csv")
		content := "group,y,lai\ndense,0.6,1\ndense,0.85,2\nsparse,0.3,1\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		got, err := NewDataReader(path).ReadObservations(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, canopy.Observation{Response: 0.6, Predictor: 1, Group: "dense"}, got[0])
	})

	t.Run("without header columns are positional", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "canopy.csv")
		content := "0.6,1,dense\n0.3,1,sparse\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		got, err := NewDataReader(path).ReadObservations(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, canopy.GroupLabel("sparse"), got[1].Group)
	})

	t.Run("blank rows are skipped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "canopy.csv")
		content := "response,predictor,group\n0.6,1,dense\n,,\n0.3,1,sparse\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		got, err := NewDataReader(path).ReadObservations(context.Background())
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unparsable cell is rejected with row context", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "canopy.csv")
		content := "response,predictor,group\nhigh,1,dense\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := NewDataReader(path).ReadObservations(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewDataReader("/nonexistent/file.xlsx").ReadObservations(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
