package subject

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathSelectionMarshalMatchesToolLayout(t *testing.T) {
	sel := NewPathSelection().Add(DefaultGroup, ContainerPath("/lyncser_data", "test1.txt"))

	out, err := sel.Marshal()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "paths:\n  all:\n"), out)
	assert.Contains(t, out, "- /lyncser_data/test1.txt")

	parsed, err := ParsePathSelection(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"/lyncser_data/test1.txt"}, parsed.Managed(DefaultGroup))
}

func TestPathSelectionParsesQuotedDocument(t *testing.T) {
	doc := "paths:\n  all:\n    - \"/lyncser_data/test1.txt\"\n  laptop:\n    - \"/lyncser_data/notes.md\"\n"

	sel, err := ParsePathSelection(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"/lyncser_data/test1.txt"}, sel.Managed("all"))
	assert.ElementsMatch(t, []string{"/lyncser_data/test1.txt", "/lyncser_data/notes.md"}, sel.Managed("all", "laptop"))
	assert.Empty(t, sel.Managed("desktop"))
}

func TestPathSelectionAddSkipsDuplicates(t *testing.T) {
	sel := NewPathSelection().
		Add(DefaultGroup, "/lyncser_data/a.txt").
		Add(DefaultGroup, "/lyncser_data/a.txt", "/lyncser_data/b.txt")

	assert.Equal(t, []string{"/lyncser_data/a.txt", "/lyncser_data/b.txt"}, sel.Paths[DefaultGroup])
}

func TestPathSelectionValidate(t *testing.T) {
	assert.Error(t, NewPathSelection().Validate())
	assert.Error(t, NewPathSelection().Add(DefaultGroup, "relative.txt").Validate())
	assert.Error(t, NewPathSelection().Add(" ", "/lyncser_data/a.txt").Validate())
	assert.NoError(t, NewPathSelection().Add(DefaultGroup, "/lyncser_data/a.txt").Validate())

	_, err := NewPathSelection().Add(DefaultGroup, "a.txt").Marshal()
	assert.Error(t, err)
}

func TestLocalConfigRoundTrip(t *testing.T) {
	out, err := DefaultLocalConfig().Marshal()
	require.NoError(t, err)

	local, err := ParseLocalConfig(out)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultGroup}, local.Tags)
}
