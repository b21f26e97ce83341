package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/devicemapper-go/dm"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("0 32768 linear /dev/sdb1 2048")
	require.NoError(t, err)
	assert.Equal(t, dm.Target{Start: 0, Length: 32768, Type: "linear", Params: "/dev/sdb1 2048"}, target)

	// Targets like zero and error take no params.
	target, err = ParseTarget("0 1024 zero")
	require.NoError(t, err)
	assert.Equal(t, dm.Target{Start: 0, Length: 1024, Type: "zero"}, target)

	_, err = ParseTarget("0 1024")
	assert.Error(t, err)
	_, err = ParseTarget("zero 1024 linear /dev/sdb1 0")
	assert.Error(t, err)
	_, err = ParseTarget("0 -5 linear /dev/sdb1 0")
	assert.Error(t, err)
}

func TestReadTargets(t *testing.T) {
	input := `# striped pair
0 1024 linear /dev/sdb1 2048

1024 1024 linear /dev/sdc1 0
`
	targets, err := ReadTargets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, uint64(1024), targets[1].Start)
	assert.Equal(t, "/dev/sdc1 0", targets[1].Params)

	_, err = ReadTargets(strings.NewReader("# only comments\n\n"))
	assert.ErrorContains(t, err, "did not contain any targets")

	_, err = ReadTargets(strings.NewReader("0 1024 linear\nbogus line\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestSectorsToHuman(t *testing.T) {
	assert.Equal(t, "16.0MiB", SectorsToHuman(32768))
	assert.Equal(t, "1.0GiB", SectorsToHuman(2097152))
}
