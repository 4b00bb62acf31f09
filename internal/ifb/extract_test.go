package ifb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body string) []string {
	t.Helper()
	doc, err := ParseDocument([]byte(body))
	require.NoError(t, err)
	return Tokens(doc)
}

func TestTokensKeepWhitespaceAndSkipComments(t *testing.T) {
	tokens := mustParse(t, "<div><p>a</p> <!-- note --><span>b<b>c</b></span></div>")
	assert.Equal(t, []string{"a", " ", "b", "c"}, tokens)
}

func TestDisksFromTokens(t *testing.T) {
	layout := DefaultLayout().Disks
	disks, err := DisksFromTokens([]string{"scratch", "100GB", "uuid-1", "data", "50GB", "uuid-2"}, layout)
	require.NoError(t, err)
	assert.Equal(t, []Disk{
		{Name: "scratch", Size: "100GB", UUID: "uuid-1"},
		{Name: "data", Size: "50GB", UUID: "uuid-2"},
	}, disks)
}

func TestDisksFromTokensCount(t *testing.T) {
	layout := DefaultLayout().Disks
	for n := 0; n < 6; n++ {
		var tokens []string
		for i := 0; i < n; i++ {
			tokens = append(tokens, fmt.Sprintf("disk-%d", i), "10GB", fmt.Sprintf("uuid-%d", i))
		}
		disks, err := DisksFromTokens(tokens, layout)
		require.NoError(t, err)
		require.Len(t, disks, len(tokens)/3)
		for _, d := range disks {
			assert.NotEmpty(t, d.Name)
			assert.NotEmpty(t, d.UUID)
		}
	}
}

func TestDisksFromTokensRejectsMisaligned(t *testing.T) {
	layout := DefaultLayout().Disks
	for _, tokens := range [][]string{
		{"scratch"},
		{"scratch", "100GB"},
		{"scratch", "100GB", "uuid-1", "data"},
	} {
		_, err := DisksFromTokens(tokens, layout)
		require.ErrorIs(t, err, ErrMalformedPage, "tokens %v", tokens)
	}
}

func TestDisksFromTokensRejectsMissingUUID(t *testing.T) {
	_, err := DisksFromTokens([]string{"scratch", "100GB", "  "}, DefaultLayout().Disks)
	require.ErrorIs(t, err, ErrMalformedPage)
}

func TestExtractDisksRequiresContainer(t *testing.T) {
	doc, err := ParseDocument([]byte(page("<table id=\"other\"></table>")))
	require.NoError(t, err)
	_, err = ExtractDisks(doc, DefaultLayout().Disks)
	require.ErrorIs(t, err, ErrMalformedPage)
}

func recordTokens(rows ...[]string) []string {
	tokens := headerTokens()
	for _, row := range rows {
		tokens = append(tokens, row...)
	}
	return tokens
}

func TestInstancesFromTokensSingleSentinel(t *testing.T) {
	layout := DefaultLayout().Instances
	instances, err := InstancesFromTokens(recordTokens(instanceRow("7", "web", "running", "192.168.1.7")), layout)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "7", instances[0].ID)
	assert.Equal(t, "web", instances[0].Name)
	assert.Equal(t, "192.168.1.7", instances[0].IP)
}

func TestInstancesFromTokensSentinelRightAfterFields(t *testing.T) {
	layout := DefaultLayout().Instances
	row := []string{"7", "web", "running", "Galaxy", "3%", "2", "4GB", "1", "100GB", "host = 10.1.1.1"}
	instances, err := InstancesFromTokens(recordTokens(row), layout)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "10.1.1.1", instances[0].IP)
}

func TestInstancesFromTokensWithoutSentinel(t *testing.T) {
	layout := DefaultLayout().Instances
	instances, err := InstancesFromTokens(recordTokens(instanceRow("8", "stopped-vm", "stopped", "")), layout)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "stopped-vm", instances[0].Name)
	assert.Empty(t, instances[0].IP)
}

func TestInstancesFromTokensMultipleRecords(t *testing.T) {
	layout := DefaultLayout().Instances
	tokens := recordTokens(
		instanceRow("1", "a", "running", "10.0.0.1"),
		instanceRow("2", "b", "running", "10.0.0.2"),
		instanceRow("3", "c", "stopped", ""),
	)
	instances, err := InstancesFromTokens(tokens, layout)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, "10.0.0.1", instances[0].IP)
	assert.Equal(t, "b", instances[1].Name)
	assert.Equal(t, "10.0.0.2", instances[1].IP)
	assert.Equal(t, "c", instances[2].Name)
	assert.Empty(t, instances[2].IP)
}

func TestInstancesFromTokensIgnoresTrailingWhitespace(t *testing.T) {
	layout := DefaultLayout().Instances
	tokens := append(recordTokens(instanceRow("1", "a", "running", "10.0.0.1")), "\n", "  ")
	instances, err := InstancesFromTokens(tokens, layout)
	require.NoError(t, err)
	require.Len(t, instances, 1)
}

func TestInstancesFromTokensTruncatedRecord(t *testing.T) {
	layout := DefaultLayout().Instances
	tokens := append(recordTokens(instanceRow("1", "a", "running", "10.0.0.1")), "2", "b", "running")
	_, err := InstancesFromTokens(tokens, layout)
	require.ErrorIs(t, err, ErrMalformedPage)
}

func TestInstancesFromTokensEmptyID(t *testing.T) {
	layout := DefaultLayout().Instances
	_, err := InstancesFromTokens(recordTokens(instanceRow(" ", "a", "running", "10.0.0.1")), layout)
	require.ErrorIs(t, err, ErrMalformedPage)
}

func TestInstancesFromTokensHeaderOnly(t *testing.T) {
	instances, err := InstancesFromTokens(headerTokens(), DefaultLayout().Instances)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestExtractInstancesFromHTML(t *testing.T) {
	doc, err := ParseDocument([]byte(page(instancesTable(
		instanceRow("11", "galaxy", "running", "134.158.1.2"),
	))))
	require.NoError(t, err)
	instances, err := ExtractInstances(doc, DefaultLayout().Instances)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "134.158.1.2", instances[0].IP)
}

func TestExtractAppliancesSkipsPlaceholder(t *testing.T) {
	doc, err := ParseDocument([]byte(page(applianceSelect(
		Appliance{ID: 215, Name: "Galaxy"},
		Appliance{ID: 3, Name: "Debian 9"},
	))))
	require.NoError(t, err)
	options, err := ExtractAppliances(doc, DefaultLayout().Appliances)
	require.NoError(t, err)
	assert.Equal(t, []Appliance{{ID: 215, Name: "Galaxy"}, {ID: 3, Name: "Debian 9"}}, options)
}

func TestApplianceCatalogRoundTrip(t *testing.T) {
	catalog := NewApplianceCatalog([]Appliance{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}})
	for _, name := range catalog.Names() {
		id, ok := catalog.ID(name)
		require.True(t, ok)
		back, ok := catalog.Name(id)
		require.True(t, ok)
		assert.Equal(t, name, back)
	}
}

func TestApplianceCatalogLastWins(t *testing.T) {
	catalog := NewApplianceCatalog([]Appliance{
		{ID: 1, Name: "a"},
		{ID: 1, Name: "b"},
		{ID: 2, Name: "c"},
		{ID: 3, Name: "c"},
	})
	assert.Equal(t, []string{"b", "c"}, catalog.Names())
	name, _ := catalog.Name(1)
	assert.Equal(t, "b", name)
	id, _ := catalog.ID("c")
	assert.Equal(t, 3, id)
	_, ok := catalog.Name(2)
	assert.False(t, ok)
}

func TestApplianceCatalogJSON(t *testing.T) {
	catalog := NewApplianceCatalog([]Appliance{{ID: 215, Name: "Galaxy"}})
	data, err := catalog.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"Galaxy":215}`, string(data))
}

func TestInstanceTypesCode(t *testing.T) {
	types := DefaultInstanceTypes()
	assert.Len(t, types, 7)

	code, err := types.Code("c2.small")
	require.NoError(t, err)
	assert.Equal(t, "9", code)

	_, err = types.Code("c9.huge")
	require.ErrorIs(t, err, ErrUnknownInstanceType)
	assert.True(t, strings.Contains(err.Error(), strings.Join(types.Names(), ", ")))
}
