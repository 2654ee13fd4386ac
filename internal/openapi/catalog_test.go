// internal/openapi/catalog_test.go
package openapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

const minimalSpec = `{"openapi":"3.0.0","info":{"title":"T","version":"1"},"servers":[{"url":"https://api.example.com"}],"paths":{"/users":{"get":{"summary":"List","responses":{"200":{"content":{"application/json":{"schema":{"type":"object","properties":{"id":{"type":"integer"}}}}}}}}}}}`

const refSpecYAML = `
openapi: 3.0.3
info:
  title: Pets
  version: "2"
paths:
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        schema:
          type: string
    get:
      summary: Get pet
      parameters:
        - $ref: '#/components/parameters/Verbose'
        - name: X-Trace
          in: header
          schema:
            type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        "404":
          description: missing
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Missing'
        "204":
          description: empty
    post:
      responses:
        "201":
          description: created
  /tree:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Node'
components:
  parameters:
    Verbose:
      name: verbose
      in: query
      required: true
      schema:
        type: boolean
  schemas:
    Pet:
      type: object
      properties:
        id:
          type: integer
        owner:
          $ref: '#/components/schemas/Owner'
    Owner:
      type: object
      properties:
        name:
          type: string
    Node:
      type: object
      properties:
        children:
          type: array
          items:
            $ref: '#/components/schemas/Node'
`

const swaggerSpec = `{
  "swagger": "2.0",
  "info": {"title": "Legacy", "version": "1.0"},
  "host": "legacy.example.com",
  "basePath": "/v1/",
  "paths": {
    "/items": {
      "get": {
        "parameters": [{"name": "limit", "in": "query", "type": "integer"}],
        "responses": {
          "200": {
            "description": "ok",
            "schema": {"$ref": "#/definitions/ItemList"}
          }
        }
      },
      "delete": {"responses": {"204": {"description": "gone"}}}
    }
  },
  "definitions": {
    "ItemList": {"type": "array", "items": {"type": "string"}}
  }
}`

func TestLoadMinimalSpec(t *testing.T) {
	catalog, err := Load([]byte(minimalSpec), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", catalog.BaseURL)
	endpoints := catalog.Endpoints()
	require.Len(t, endpoints, 1)
	assert.Equal(t, "/users", endpoints[0].Path)
	assert.Equal(t, "GET", endpoints[0].Method)
	assert.Equal(t, "List", endpoints[0].Summary)

	schema, found, err := catalog.ResolveSchema("/users", "200")
	require.NoError(t, err)
	require.True(t, found)
	want, _ := jsonval.ParseString(`{"type":"object","properties":{"id":{"type":"integer"}}}`)
	assert.True(t, want.Equal(schema), "got %s", schema.String())
}

func TestLoadResolvesRefsFromYAML(t *testing.T) {
	catalog, err := Load([]byte(refSpecYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "https://localhost", catalog.BaseURL)
	assert.Equal(t, []string{"/pets/{petId}", "/tree"}, catalog.Paths())

	ep, err := catalog.Endpoint("/pets/{petId}")
	require.NoError(t, err)
	require.Len(t, ep.Parameters, 3)
	assert.Equal(t, Parameter{Name: "petId", In: "path", Type: "string", Required: true}, ep.Parameters[0])
	assert.Equal(t, Parameter{Name: "verbose", In: "query", Type: "boolean", Required: true}, ep.Parameters[1])
	assert.Equal(t, "header", ep.Parameters[2].In)
	assert.Equal(t, []string{"200", "404", "204"}, ep.StatusCodes())

	schema, found, err := catalog.ResolveSchema("/pets/{petId}", "200")
	require.NoError(t, err)
	require.True(t, found)
	want, _ := jsonval.ParseString(`{"type":"object","properties":{"id":{"type":"integer"},"owner":{"type":"object","properties":{"name":{"type":"string"}}}}}`)
	assert.True(t, want.Equal(schema), "got %s", schema.String())
	assert.NotContains(t, schema.String(), "$ref")
}

func TestResolveSchemaDanglingRef(t *testing.T) {
	catalog, err := Load([]byte(refSpecYAML), FormatYAML)
	require.NoError(t, err)

	_, found, err := catalog.ResolveSchema("/pets/{petId}", "404")
	assert.False(t, found)
	assert.True(t, errors.Is(err, ErrUnresolvedRef))
	assert.Contains(t, err.Error(), "#/components/schemas/Missing")
}

func TestResolveSchemaAbsent(t *testing.T) {
	catalog, err := Load([]byte(refSpecYAML), FormatYAML)
	require.NoError(t, err)

	_, found, err := catalog.ResolveSchema("/pets/{petId}", "204")
	assert.NoError(t, err)
	assert.False(t, found)

	_, found, err = catalog.ResolveSchema("/pets/{petId}", "500")
	assert.NoError(t, err)
	assert.False(t, found)

	_, _, err = catalog.ResolveSchema("/nope", "200")
	assert.True(t, errors.Is(err, ErrEndpointAbsent))
}

func TestResolveSchemaRecursiveRef(t *testing.T) {
	catalog, err := Load([]byte(refSpecYAML), FormatYAML)
	require.NoError(t, err)

	schema, found, err := catalog.ResolveSchema("/tree", "200")
	require.NoError(t, err)
	require.True(t, found)
	items, ok := schema.Path("properties.children.items")
	require.True(t, ok)
	assert.Equal(t, 0, items.Len())
	assert.NotContains(t, schema.String(), "$ref")
}

func TestLoadSwagger2(t *testing.T) {
	catalog, err := Load([]byte(swaggerSpec), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "https://legacy.example.com/v1", catalog.BaseURL)
	require.Len(t, catalog.Endpoints(), 1)

	ep, _ := catalog.Endpoint("/items")
	require.Len(t, ep.Parameters, 1)
	assert.Equal(t, "integer", ep.Parameters[0].Type)

	code, schema, found, err := catalog.PrimarySchema("/items")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "200", code)
	assert.Equal(t, `{"type":"array","items":{"type":"string"}}`, schema.String())
}

func TestBaseURLFallbacks(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		want string
	}{
		{"servers first entry", `{"servers":[{"url":"https://a.example.com/api"},{"url":"https://b"}]}`, "https://a.example.com/api"},
		{"server variables", `{"servers":[{"url":"https://{region}.example.com","variables":{"region":{"default":"eu"}}}]}`, "https://eu.example.com"},
		{"host only", `{"host":"h.example.com"}`, "https://h.example.com"},
		{"host and basePath", `{"host":"h.example.com","basePath":"/v2"}`, "https://h.example.com/v2"},
		{"basePath without slash", `{"host":"h","basePath":"v2"}`, "https://h/v2"},
		{"nothing", `{}`, "https://localhost"},
		{"empty servers", `{"servers":[]}`, "https://localhost"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := jsonval.ParseString(tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resolveBaseURL(doc))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		format  Format
		wantErr error
	}{
		{"malformed json", `{"openapi": `, FormatJSON, ErrParse},
		{"malformed yaml", "openapi: [3.0.0\ninfo: {", FormatYAML, ErrParse},
		{"empty", "   ", FormatYAML, ErrParse},
		{"scalar root", `"just a string"`, FormatJSON, ErrParse},
		{"missing info", `{"openapi":"3.0.0","paths":{}}`, FormatJSON, ErrInvalid},
		{"not openapi", `{"hello":"world"}`, FormatJSON, ErrInvalid},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := Load([]byte(tc.content), tc.format)
			assert.Nil(t, catalog)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("", []byte(` {"a":1}`))
	assert.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("YML", nil)
	assert.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml", nil)
	assert.True(t, errors.Is(err, ErrParse))

	assert.Equal(t, FormatYAML, FormatFromFilename("spec.yaml", []byte(`{}`)))
	assert.Equal(t, FormatJSON, FormatFromFilename("spec.txt", []byte(`{}`)))
}
