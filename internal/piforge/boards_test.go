package piforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardKernelMapping(t *testing.T) {
	expected := map[string]string{
		"pi2":    "kernel7.img",
		"pi3":    "kernel8-32.img",
		"pi3-64": "kernel8.img",
		"pi4":    "kernel7l.img",
		"pi4-64": "kernel8-rpi4.img",
	}

	// The mapping must be total over the enumerated domain and pure:
	// two lookups of the same name always agree.
	for name, kernel := range expected {
		b, err := LookupBoard(name)
		require.NoError(t, err, "board %s must be known", name)
		assert.Equal(t, kernel, b.Kernel)

		again, err := LookupBoard(name)
		require.NoError(t, err)
		assert.Equal(t, b.Kernel, again.Kernel)
	}

	assert.Len(t, boardTable, len(expected), "no boards outside the enumerated domain")
}

func TestLookupBoardUnknown(t *testing.T) {
	_, err := LookupBoard("pi5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown board")
	assert.Contains(t, err.Error(), "pi3-64", "error should name the valid set")
}

func TestLookupBoardToolPrefix(t *testing.T) {
	oldPrefix32, oldPrefix64 := Prefix32, Prefix64
	defer func() { Prefix32, Prefix64 = oldPrefix32, oldPrefix64 }()
	Prefix32 = "arm-none-eabi-"
	Prefix64 = "aarch64-none-elf-"

	b32, err := LookupBoard("pi4")
	require.NoError(t, err)
	assert.Equal(t, "arm-none-eabi-", b32.ToolPrefix)

	b64, err := LookupBoard("pi4-64")
	require.NoError(t, err)
	assert.Equal(t, "aarch64-none-elf-", b64.ToolPrefix)
}

func TestAllBoardsOrder(t *testing.T) {
	var names []string
	for _, b := range AllBoards() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"pi2", "pi3", "pi3-64", "pi4", "pi4-64"}, names)
}

func TestParseBoards(t *testing.T) {
	all, err := ParseBoards(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5, "no arguments selects the full matrix")

	some, err := ParseBoards([]string{"pi3", "pi3", "pi4-64"})
	require.NoError(t, err)
	require.Len(t, some, 2, "duplicates collapse")
	assert.Equal(t, "pi3", some[0].Name)
	assert.Equal(t, "pi4-64", some[1].Name)

	_, err = ParseBoards([]string{"pi3", "bananapi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bananapi")
}
