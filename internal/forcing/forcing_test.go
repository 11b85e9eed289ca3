package forcing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIceFile(t *testing.T, nlon, nlat int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ice.nc")
	w, err := netcdf.OpenWriter(path, netcdf.KindCDF)
	require.NoError(t, err)
	attrs, err := util.NewOrderedMap(nil, nil)
	require.NoError(t, err)

	lon := make([]float32, nlon)
	lat := make([]float32, nlat)
	ice := [][][]float32{make([][]float32, nlat)}
	for j := range ice[0] {
		ice[0][j] = make([]float32, nlon)
	}
	vars := []struct {
		name string
		v    api.Variable
	}{
		{"epoch", api.Variable{Values: []float64{0}, Dimensions: []string{"epoch"}, Attributes: attrs}},
		{"lat", api.Variable{Values: lat, Dimensions: []string{"lat"}, Attributes: attrs}},
		{"lon", api.Variable{Values: lon, Dimensions: []string{"lon"}, Attributes: attrs}},
		{"Ice", api.Variable{Values: ice, Dimensions: []string{"epoch", "lat", "lon"}, Attributes: attrs}},
	}
	for _, v := range vars {
		require.NoError(t, w.AddVar(v.name, v.v))
	}
	require.NoError(t, w.Close())
	return path
}

func TestInspectIceThickness(t *testing.T) {
	path := writeIceFile(t, 512, 256)
	layout, err := Inspect(path, "Ice")
	require.NoError(t, err)
	assert.Equal(t, []string{"epoch", "lat", "lon"}, layout.Dimensions)
	assert.Equal(t, "float", layout.Type)
	assert.Equal(t, uint64(512), layout.Sizes["lon"])
	assert.Equal(t, uint64(256), layout.Sizes["lat"])
	assert.NoError(t, IceThickness.CheckFile(path))
}

func TestCheckFileRejectsWrongGrid(t *testing.T) {
	path := writeIceFile(t, 128, 64)
	err := IceThickness.CheckFile(path)
	require.ErrorIs(t, err, ErrLayout)
	assert.Contains(t, err.Error(), "lon=128, want 512")
	assert.Contains(t, err.Error(), "lat=64, want 256")
}

func TestInspectMissingVariable(t *testing.T) {
	path := writeIceFile(t, 4, 2)
	_, err := Inspect(path, "thk")
	assert.ErrorIs(t, err, ErrLayout)
}

func TestInspectNotNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ice.nc")
	require.NoError(t, writeText(path, "not a netcdf file"))
	_, err := Inspect(path, "Ice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLayout))
}

func TestSchemaCheck(t *testing.T) {
	l := Layout{
		Variable:   "Ice",
		Dimensions: []string{"time", "lat", "lon"},
		Type:       "double",
		Sizes:      map[string]uint64{"lon": 512},
	}
	err := IceThickness.Check(l)
	require.ErrorIs(t, err, ErrLayout)
	for _, want := range []string{"dimensions (time, lat, lon)", "type double, want float", "no lat dimension"} {
		assert.Contains(t, err.Error(), want)
	}
}

func writeText(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
