package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vmItem = []byte(`{
	"id": "12345",
	"name": "web-1",
	"status": "RUNNING",
	"machineType": "https://www.googleapis.com/compute/v1/projects/p/zones/z/machineTypes/e2-medium",
	"zone": "projects/p/zones/us-central1-a",
	"networkInterfaces": [
		{"networkIP": "10.0.0.2", "accessConfigs": [{"natIP": "34.1.2.3"}]}
	],
	"labels": {"env": "prod"},
	"tags": {"items": ["http", "https"]},
	"sizeGb": 100,
	"fraction": 1.5,
	"enabled": true,
	"nothing": null
}`)

func TestExtractSimple(t *testing.T) {
	assert.Equal(t, "web-1", Extract(vmItem, "name"))
	assert.Equal(t, "RUNNING", Extract(vmItem, "status"))
}

func TestExtractBracketPath(t *testing.T) {
	assert.Equal(t, "10.0.0.2", Extract(vmItem, "networkInterfaces[0].networkIP"))
	assert.Equal(t, "34.1.2.3", Extract(vmItem, "networkInterfaces[0].accessConfigs[0].natIP"))
}

func TestExtractURLShortening(t *testing.T) {
	assert.Equal(t, "e2-medium", Extract(vmItem, "machineType"))
	assert.Equal(t, "us-central1-a", Extract(vmItem, "zone"))
}

func TestExtractMissingAndNull(t *testing.T) {
	assert.Equal(t, "-", Extract(vmItem, "doesNotExist"))
	assert.Equal(t, "-", Extract(vmItem, "nothing"))
	assert.Equal(t, "-", Extract(vmItem, "networkInterfaces[5].networkIP"))
}

func TestExtractCompound(t *testing.T) {
	assert.Equal(t, "[object]", Extract(vmItem, "labels"))
	assert.Equal(t, "[2 items]", Extract(vmItem, "tags.items"))
	assert.Equal(t, "-", Extract([]byte(`{"a": []}`), "a"))
}

func TestExtractNumbersAndBools(t *testing.T) {
	assert.Equal(t, "100", Extract(vmItem, "sizeGb"))
	assert.Equal(t, "1.5", Extract(vmItem, "fraction"))
	assert.Equal(t, "true", Extract(vmItem, "enabled"))
}

// Field keeps identity values raw: no URL shortening, no placeholder.
func TestFieldRaw(t *testing.T) {
	assert.Equal(t, "projects/p/zones/us-central1-a", Field(vmItem, "zone"))
	assert.Equal(t, "", Field(vmItem, "doesNotExist"))
}

func TestURLTail(t *testing.T) {
	assert.Equal(t, "us-central1-a", URLTail("https://compute.googleapis.com/v1/projects/p/zones/us-central1-a"))
	assert.Equal(t, "plain", URLTail("plain"))
}

func TestItemsAtPath(t *testing.T) {
	body := []byte(`{"items": [{"name": "a"}, {"name": "b"}]}`)
	items := Items(body, "items")
	require.Len(t, items, 2)
	assert.Equal(t, "a", Field(items[0], "name"))
}

func TestItemsEmptyPath(t *testing.T) {
	items := Items([]byte(`[{"name": "a"}]`), "")
	require.Len(t, items, 1)

	// single object body becomes a one-item list
	items = Items([]byte(`{"name": "a"}`), "")
	require.Len(t, items, 1)
	assert.Equal(t, "a", Field(items[0], "name"))
}

func TestItemsMissingPath(t *testing.T) {
	assert.Empty(t, Items([]byte(`{"kind": "list"}`), "items"))
	assert.Empty(t, Items([]byte(`{"items": "not-an-array"}`), "items"))
}

// Aggregated list bodies keyed by scope flatten into one item list.
func TestItemsAggregated(t *testing.T) {
	body := []byte(`{"items": {
		"regions/us-central1": {"subnetworks": [{"name": "sub-a"}, {"name": "sub-b"}]},
		"regions/europe-west1": {"subnetworks": [{"name": "sub-c"}]},
		"regions/empty": {"warning": {"code": "NO_RESULTS_ON_PAGE"}}
	}}`)
	items := Items(body, "items.*.subnetworks")
	require.Len(t, items, 3)

	names := map[string]bool{}
	for _, it := range items {
		names[Field(it, "name")] = true
	}
	assert.True(t, names["sub-a"] && names["sub-b"] && names["sub-c"])
}
