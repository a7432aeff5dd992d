package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGPL = `GIMP Palette
Name: Two Tone
Columns: 2
#
  0   0   0	black
255 255 255	white
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(sampleGPL))
	require.NoError(t, err)
	assert.Equal(t, "Two Tone", p.Name)
	assert.Equal(t, []RGB{{0, 0, 0}, {255, 255, 255}}, p.Colors)

	_, err = ParseGPL(strings.NewReader("GIMP Palette\nName: Empty\n"))
	assert.EqualError(t, err, "no colors found")

	// out-of-range components are not colors
	_, err = ParseGPL(strings.NewReader("300 0 0\n"))
	assert.Error(t, err)
}

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.gpl")
	require.NoError(t, os.WriteFile(path, []byte(sampleGPL), 0644))

	p, err := LoadGPL(path)
	require.NoError(t, err)
	assert.Len(t, p.Colors, 2)

	_, err = LoadGPL(filepath.Join(t.TempDir(), "missing.gpl"))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}

	assert.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	assert.Equal(t, RGB{200, 100, 50}, p.Lookup(2))
	assert.Equal(t, RGB{100, 50, 25}, p.Lookup(0.5))
}

func TestTheme(t *testing.T) {
	th := New(nil)
	assert.Equal(t, "plasma", th.Palette.Name)

	th = New(&Palette{Colors: []RGB{{0, 0, 0}, {255, 255, 255}}})
	assert.EqualValues(t, "#000000", th.Color(0))
	assert.EqualValues(t, "#ffffff", th.Success())
	assert.Equal(t, th.Color(float64(RoleAccent)), th.Accent())
}
