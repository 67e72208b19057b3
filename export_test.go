package flags

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportTree(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	tree.MustAddFlag("Exec.MaxEvents", 10, WithHelp("events to process"))
	tree.MustAddFlag("Exec.Double", Expression(`local("MaxEvents") * 2`))
	tree.MustAddFlag("Input.Format", enumBS, WithEnum(testEnum))
	tree.MustAddFlag("Input.Files", []string{"a.data"})
	tree.MustAddFlag("Input.Token", "secret", Hidden())
	require.NoError(t, tree.AddFlagsCategory("PerfMon", func() (*Tree, error) {
		fragment := New()
		fragment.MustAddFlag("PerfMon.doFastMonMT", false)
		return fragment, nil
	}, false))
	return tree
}

func TestAsDictResolvesEverything(t *testing.T) {
	tree := exportTree(t)

	dict, err := tree.AsDict()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Exec": map[string]any{"MaxEvents": 10, "Double": 20},
		"Input": map[string]any{
			"Format": enumBS,
			"Files":  []string{"a.data"},
			"Token":  "secret",
		},
		"PerfMon": map[string]any{"doFastMonMT": false},
	}, dict)

	exec, err := tree.At("Exec").AsDict()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"MaxEvents": 10, "Double": 20}, exec)

	_, err = tree.At("Nowhere").AsDict()
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestYAMLRendersResolvedValues(t *testing.T) {
	out, err := exportTree(t).YAML()
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "MaxEvents: 10")
	assert.Contains(t, text, "Double: 20")
	assert.Contains(t, text, "doFastMonMT: false")
}

func TestDecodeIntoStruct(t *testing.T) {
	type execConfig struct {
		MaxEvents int `flag:"MaxEvents"`
		Double    int `flag:"Double"`
	}
	type inputConfig struct {
		Format string   `flag:"Format"`
		Files  []string `flag:"Files"`
	}

	tree := exportTree(t)
	var exec execConfig
	require.NoError(t, tree.Decode("Exec", &exec))
	assert.Equal(t, execConfig{MaxEvents: 10, Double: 20}, exec)

	var input inputConfig
	require.NoError(t, tree.At("Input").Decode(&input))
	assert.Equal(t, "BS", input.Format)
	assert.Equal(t, []string{"a.data"}, input.Files)

	assert.Error(t, tree.Decode("Exec", exec), "decoding needs a pointer")
}

func TestDumpListsPendingCategories(t *testing.T) {
	tree := exportTree(t)
	var out bytes.Buffer
	require.NoError(t, tree.Dump(&out, DumpOptions{}))

	text := out.String()
	assert.Contains(t, text, "MaxEvents = 10")
	assert.Contains(t, text, `Double = expr(local("MaxEvents") * 2)`)
	assert.Contains(t, text, "[pending]")
	assert.Contains(t, text, "PerfMon")
	assert.Equal(t, KindPending, tree.Kind("PerfMon"), "plain dumps do not load")
}

func TestDumpEvaluatesAndFilters(t *testing.T) {
	tree := exportTree(t)
	var out bytes.Buffer
	require.NoError(t, tree.Dump(&out, DumpOptions{Pattern: `^Exec\.`, Evaluate: true}))

	text := out.String()
	assert.Contains(t, text, "Double = 20")
	assert.NotContains(t, text, "Input")
	assert.NotContains(t, text, "PerfMon")
	assert.Equal(t, KindCategory, tree.Kind("PerfMon"), "evaluated dumps load every category")

	err := tree.Dump(&out, DumpOptions{Pattern: "("})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDescribeListsFlags(t *testing.T) {
	descriptors, err := exportTree(t).Describe()
	require.NoError(t, err)

	byPath := map[string]FlagDescriptor{}
	var paths []string
	for _, d := range descriptors {
		byPath[d.Path] = d
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{
		"Exec.Double",
		"Exec.MaxEvents",
		"Input.Files",
		"Input.Format",
		"Input.Token",
		"PerfMon.doFastMonMT",
	}, paths)

	assert.Equal(t, "int", byPath["Exec.MaxEvents"].Type)
	assert.Equal(t, "events to process", byPath["Exec.MaxEvents"].Help)
	assert.True(t, byPath["Exec.Double"].Dynamic)
	assert.Equal(t, "any", byPath["Exec.Double"].Type)
	assert.Equal(t, "Format", byPath["Input.Format"].Enum)
	assert.Equal(t, []string{"BS", "POOL"}, byPath["Input.Format"].Members)
	assert.True(t, byPath["Input.Token"].Hidden)
}
