package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/webglue/webglue/types"
)

// Field is a single named field of an extraction schema.
type Field struct {
	Name        string
	Type        string // "string", "number", "integer", "array of string", "array of object"
	Description string
	Required    bool
}

// Variant is a fixed extraction schema selectable by key on the command line.
type Variant struct {
	// Name is the rendered schema name, e.g. "Product".
	Name string
	// Key is the CLI selector, e.g. "product".
	Key         string
	Description string
	Fields      []Field
}

var productVariant = Variant{
	Name:        "Product",
	Key:         "product",
	Description: "A product on an e-commerce website",
	Fields: []Field{
		{Name: "name", Type: "string", Description: "The name of the product", Required: true},
		{Name: "price", Type: "string", Description: "The price of the product as a string, including currency symbol", Required: true},
		{Name: "description", Type: "string", Description: "A short description of the product", Required: true},
		{Name: "rating", Type: "number", Description: "The product rating as a number from 0-5", Required: false},
		{Name: "reviews_count", Type: "integer", Description: "The number of reviews for this product", Required: false},
	},
}

var articleVariant = Variant{
	Name:        "Article",
	Key:         "article",
	Description: "An article or blog post",
	Fields: []Field{
		{Name: "title", Type: "string", Description: "The title of the article", Required: true},
		{Name: "author", Type: "string", Description: "The name of the author if available", Required: false},
		{Name: "date_published", Type: "string", Description: "The publication date of the article", Required: false},
		{Name: "content_summary", Type: "string", Description: "A summary of the article content (max 200 words)", Required: true},
		{Name: "categories", Type: "array of string", Description: "List of categories or tags for this article", Required: false},
	},
}

var searchResultVariant = Variant{
	Name:        "SearchResult",
	Key:         "search_result",
	Description: "A search result item",
	Fields: []Field{
		{Name: "title", Type: "string", Description: "The title of the search result", Required: true},
		{Name: "url", Type: "string", Description: "The URL of the search result", Required: true},
		{Name: "description", Type: "string", Description: "The description or snippet of the search result", Required: true},
	},
}

// searchResponseVariant is the vision extraction shape used by websearch.
// Each entry in results carries title, url and snippet.
var searchResponseVariant = Variant{
	Name:        "SearchResponse",
	Key:         "search_response",
	Description: "Search results read off a results page",
	Fields: []Field{
		{Name: "query", Type: "string", Description: "The original search query", Required: true},
		{Name: "results", Type: "array of object", Description: "List of search results, each with title, url and snippet", Required: true},
		{Name: "total_results_count", Type: "integer", Description: "Total number of results found (if available)", Required: false},
	},
}

// Variants returns the schemas selectable via the --schema flag,
// in declaration order.
func Variants() []Variant {
	return []Variant{productVariant, articleVariant, searchResultVariant}
}

// SearchResponseVariant returns the schema used for vision search extraction.
func SearchResponseVariant() Variant {
	return searchResponseVariant
}

// VariantByKey resolves a CLI schema key to its Variant.
func VariantByKey(key string) (Variant, error) {
	for _, v := range Variants() {
		if v.Key == key {
			return v, nil
		}
	}
	keys := make([]string, 0, 3)
	for _, v := range Variants() {
		keys = append(keys, v.Key)
	}
	sort.Strings(keys)
	return Variant{}, types.NewErrorf(types.ErrSchemaUnknown,
		"unknown schema %q (valid: %s)", key, strings.Join(keys, ", "))
}

// SchemaInfo renders the schema as prompt text, one block per field:
//
//   - name: string
//     Description: The name of the product
//     Required
func (v Variant) SchemaInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema: %s\n\n", v.Name)
	for _, f := range v.Fields {
		req := "Optional"
		if f.Required {
			req = "Required"
		}
		desc := f.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Type)
		fmt.Fprintf(&b, "  Description: %s\n", desc)
		fmt.Fprintf(&b, "  %s\n\n", req)
	}
	return b.String()
}

// JSONSchema builds a JSON Schema object for the variant, used to request
// JSON output mode from the endpoint.
func (v Variant) JSONSchema() json.RawMessage {
	properties := make(map[string]any, len(v.Fields))
	required := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		properties[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, err := json.Marshal(schema)
	if err != nil {
		// 仅静态声明的 schema，marshal 不会失败
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

func fieldSchema(f Field) map[string]any {
	s := map[string]any{"description": f.Description}
	switch f.Type {
	case "array of string":
		s["type"] = "array"
		s["items"] = map[string]any{"type": "string"}
	case "array of object":
		s["type"] = "array"
		s["items"] = map[string]any{"type": "object"}
	default:
		s["type"] = f.Type
	}
	return s
}

// RequiredFields lists the names of all required fields.
func (v Variant) RequiredFields() []string {
	out := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// MissingFields returns the required field names absent from data.
// A field present with a null value counts as missing.
func (v Variant) MissingFields(data map[string]any) []string {
	var missing []string
	for _, f := range v.Fields {
		if !f.Required {
			continue
		}
		val, ok := data[f.Name]
		if !ok || val == nil {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
