package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webglue/webglue/types"
)

func TestVariants_KeysAndOrder(t *testing.T) {
	vs := Variants()
	require.Len(t, vs, 3)
	assert.Equal(t, "product", vs[0].Key)
	assert.Equal(t, "article", vs[1].Key)
	assert.Equal(t, "search_result", vs[2].Key)
}

func TestVariantByKey(t *testing.T) {
	v, err := VariantByKey("article")
	require.NoError(t, err)
	assert.Equal(t, "Article", v.Name)

	_, err = VariantByKey("recipe")
	require.Error(t, err)
	assert.Equal(t, types.ErrSchemaUnknown, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "recipe")
	assert.Contains(t, err.Error(), "article")
}

func TestSchemaInfo_ProductRendering(t *testing.T) {
	v, err := VariantByKey("product")
	require.NoError(t, err)

	want := "Schema: Product\n\n" +
		"- name: string\n" +
		"  Description: The name of the product\n" +
		"  Required\n\n" +
		"- price: string\n" +
		"  Description: The price of the product as a string, including currency symbol\n" +
		"  Required\n\n" +
		"- description: string\n" +
		"  Description: A short description of the product\n" +
		"  Required\n\n" +
		"- rating: number\n" +
		"  Description: The product rating as a number from 0-5\n" +
		"  Optional\n\n" +
		"- reviews_count: integer\n" +
		"  Description: The number of reviews for this product\n" +
		"  Optional\n\n"
	assert.Equal(t, want, v.SchemaInfo())
}

func TestSchemaInfo_NoDescriptionFallback(t *testing.T) {
	v := Variant{Name: "T", Key: "t", Fields: []Field{{Name: "x", Type: "string", Required: true}}}
	assert.Contains(t, v.SchemaInfo(), "Description: No description\n")
}

func TestJSONSchema_Structure(t *testing.T) {
	v, err := VariantByKey("article")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(v.JSONSchema(), &schema))

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 5)

	title := props["title"].(map[string]any)
	assert.Equal(t, "string", title["type"])
	assert.Equal(t, "The title of the article", title["description"])

	categories := props["categories"].(map[string]any)
	assert.Equal(t, "array", categories["type"])
	items := categories["items"].(map[string]any)
	assert.Equal(t, "string", items["type"])

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"title", "content_summary"}, required)
}

func TestSearchResponseVariant(t *testing.T) {
	v := SearchResponseVariant()
	assert.Equal(t, "SearchResponse", v.Name)
	assert.Equal(t, []string{"query", "results"}, v.RequiredFields())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(v.JSONSchema(), &schema))
	props := schema["properties"].(map[string]any)
	results := props["results"].(map[string]any)
	assert.Equal(t, "array", results["type"])
}

func TestRequiredFields(t *testing.T) {
	v, err := VariantByKey("product")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "price", "description"}, v.RequiredFields())
}

func TestMissingFields(t *testing.T) {
	v, err := VariantByKey("search_result")
	require.NoError(t, err)

	tests := []struct {
		name string
		data map[string]any
		want []string
	}{
		{
			name: "all present",
			data: map[string]any{"title": "t", "url": "u", "description": "d"},
			want: nil,
		},
		{
			name: "one absent",
			data: map[string]any{"title": "t", "url": "u"},
			want: []string{"description"},
		},
		{
			name: "null counts as missing",
			data: map[string]any{"title": "t", "url": nil, "description": "d"},
			want: []string{"url"},
		},
		{
			name: "empty data",
			data: map[string]any{},
			want: []string{"title", "url", "description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.MissingFields(tt.data))
		})
	}
}
