package errs

import (
	"errors"
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsAreDistinguishable(t *testing.T) {
	err := InvalidState("engine %s not loaded", "lidar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), "engine lidar not loaded")
	assert.Equal(t, ErrInvalidState, Kind(err))
}

func TestIOKeepsCause(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here.tif")
	err := IO(statErr, "raster: open %s", "here.tif")
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestKindSurvivesFurtherWrapping(t *testing.T) {
	err := eris.Wrap(Auth(nil, "elevation: status 401"), "fusion runner")
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Equal(t, ErrAuth, Kind(err))
	assert.Nil(t, Kind(errors.New("plain")))
}
