// api/handlers/handlers_integration_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvera-ai/interoperability-template-generator/api"
	"github.com/alvera-ai/interoperability-template-generator/api/models"
	"github.com/alvera-ai/interoperability-template-generator/config"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/conversion"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/requester"
	"github.com/alvera-ai/interoperability-template-generator/internal/storage"
)

const usersSpec = `{
  "openapi": "3.0.3",
  "info": {"title": "Users API", "version": "1.0.0"},
  "servers": [{"url": "%s"}],
  "paths": {
    "/users": {
      "get": {
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/User"}}}}
          }
        }
      }
    },
    "/users/{id}": {
      "get": {
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {"$ref": "#/components/schemas/User"}}}
          }
        }
      }
    }
  },
  "components": {
    "schemas": {
      "User": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
      }
    }
  }
}`

const petsSpecYAML = `openapi: 3.0.3
info:
  title: Pets
  version: "2"
paths:
  /pets:
    get:
      responses:
        "200":
          description: ok
`

// setupTestServer creates a test server backed by a temporary sqlite store
// and a fake upstream API.
func setupTestServer(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]`))
		case "/users/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"Ada"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	tempDir := t.TempDir()
	testCfg := &config.Config{
		ServerPort:         ":0",
		StoreBackend:       config.BackendSQLite,
		DatabaseDir:        tempDir,
		DatabaseFile:       "test_api_tester.db",
		HTTPTimeout:        5 * time.Second,
		SandboxMaxSteps:    conversion.DefaultMaxSteps,
		CORSAllowedOrigins: []string{"*"},
	}

	backend, err := storage.NewSQLiteBackend(testCfg.DatabasePath())
	require.NoError(t, err)
	store := storage.NewStore(backend)
	require.NoError(t, store.Init(t.Context()))

	session := app.NewSession(store,
		requester.NewExecutor(testCfg.HTTPTimeout),
		conversion.NewEngine(nil, conversion.NewSandbox(testCfg.SandboxMaxSteps)))

	server := httptest.NewServer(api.SetupRouter(session, testCfg))
	t.Cleanup(server.Close)
	return server, upstream
}

func doJSON(t *testing.T, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestSpecAndCallEndpoints(t *testing.T) {
	server, upstream := setupTestServer(t)
	assert := assert.New(t)
	base := server.URL + "/api/v1"

	t.Run("Call Before Spec Loaded", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/calls", models.CallRequest{Path: "/users"})
		assert.Equal(http.StatusConflict, res.StatusCode)
		assert.Equal("no OpenAPI spec loaded", body["error"])
	})

	t.Run("Load Spec", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/specs", models.LoadSpecRequest{
			Name:    "users",
			Content: fmt.Sprintf(usersSpec, upstream.URL),
		})
		assert.Equal(http.StatusCreated, res.StatusCode)
		assert.Equal("users", body["name"])
		assert.Equal(upstream.URL, body["base_url"])
		assert.EqualValues(2, body["endpoint_count"])
		assert.NotEmpty(res.Header.Get("X-Request-ID"))
	})

	t.Run("Load Spec Bad Request", func(t *testing.T) {
		res, _ := doJSON(t, http.MethodPost, base+"/specs", models.LoadSpecRequest{Content: "openapi: [", Format: "yaml"})
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, _ = doJSON(t, http.MethodPost, base+"/specs", models.LoadSpecRequest{Content: "{}", Format: "xml"})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "format outside the oneof list")

		res, _ = doJSON(t, http.MethodPost, base+"/specs", `{"content":`)
		assert.Equal(http.StatusBadRequest, res.StatusCode, "malformed JSON body")
	})

	t.Run("List Endpoints And Schema", func(t *testing.T) {
		res, body := doJSON(t, http.MethodGet, base+"/endpoints", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Len(body["endpoints"], 2)

		res, body = doJSON(t, http.MethodGet, base+"/endpoints/schema?path="+url.QueryEscape("/users/{id}"), nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal(true, body["found"])
		assert.Equal("200", body["status_code"])

		res, _ = doJSON(t, http.MethodGet, base+"/endpoints/schema?path=/pets", nil)
		assert.Equal(http.StatusNotFound, res.StatusCode)
	})

	var resultID float64
	t.Run("Call Endpoint And Record", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/calls", models.CallRequest{
			Path:   "/users/{id}",
			Prompt: "show user id 1",
			Record: true,
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		outcome := body["outcome"].(map[string]any)
		assert.EqualValues(200, outcome["status_code"])
		assert.Equal(upstream.URL+"/users/1", outcome["url"])
		assert.Equal("valid", body["validation"].(map[string]any)["status"])
		resultID = body["result_id"].(float64)
		assert.Positive(resultID)
	})

	t.Run("Call Endpoint Errors", func(t *testing.T) {
		res, _ := doJSON(t, http.MethodPost, base+"/calls", models.CallRequest{Path: "/users/{id}"})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "missing path parameter")

		res, _ = doJSON(t, http.MethodPost, base+"/calls", models.CallRequest{Path: "/pets"})
		assert.Equal(http.StatusNotFound, res.StatusCode)

		res, _ = doJSON(t, http.MethodPost, base+"/calls", models.CallRequest{Path: "users"})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "path must start with a slash")
	})

	t.Run("Results", func(t *testing.T) {
		res, body := doJSON(t, http.MethodGet, base+"/results?limit=5", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Len(body["results"], 1)

		res, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/results/%d", base, int64(resultID)), nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal("show user id 1", body["user_prompt"])

		res, _ = doJSON(t, http.MethodGet, base+"/results/999", nil)
		assert.Equal(http.StatusNotFound, res.StatusCode)
		res, _ = doJSON(t, http.MethodGet, base+"/results/abc", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)
		res, _ = doJSON(t, http.MethodGet, base+"/results?limit=0", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)
	})

	t.Run("Validate", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/validate", `{"value":{"id":"x"},"schema":{"type":"object","properties":{"id":{"type":"integer"}}}}`)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal("invalid", body["status"])

		_, body = doJSON(t, http.MethodPost, base+"/validate", `{"value":[1,2]}`)
		assert.Equal("skipped", body["status"])
	})

	t.Run("Multipart Upload Activates New Spec", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "pets.yaml")
		require.NoError(t, err)
		_, _ = fw.Write([]byte(petsSpecYAML))
		require.NoError(t, mw.WriteField("name", "pets"))
		require.NoError(t, mw.Close())

		res, err := http.Post(base+"/specs", mw.FormDataContentType(), &buf)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(http.StatusCreated, res.StatusCode)

		_, body := doJSON(t, http.MethodGet, base+"/specs/active", nil)
		assert.Equal("pets", body["name"])

		res, body = doJSON(t, http.MethodPost, base+"/specs/users/activate", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal("users", body["name"])

		_, body = doJSON(t, http.MethodGet, base+"/specs", nil)
		assert.Len(body["specs"], 2)
	})
}

func TestTableAndTemplateEndpoints(t *testing.T) {
	server, upstream := setupTestServer(t)
	assert := assert.New(t)
	base := server.URL + "/api/v1"

	res, _ := doJSON(t, http.MethodPost, base+"/specs", models.LoadSpecRequest{Content: fmt.Sprintf(usersSpec, upstream.URL)})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	t.Run("Create Table", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/tables", models.CreateTableRequest{
			CreateStatement: "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, nickname TEXT)",
			Reason:          "store users",
		})
		assert.Equal(http.StatusCreated, res.StatusCode)
		assert.Equal("people", body["table_name"])

		res, _ = doJSON(t, http.MethodPost, base+"/tables", models.CreateTableRequest{CreateStatement: "DROP TABLE people"})
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, _ = doJSON(t, http.MethodPost, base+"/tables", models.CreateTableRequest{})
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, body = doJSON(t, http.MethodPost, base+"/tables", models.CreateTableRequest{CreateStatement: "CREATE TABLE broken (id INTEGER,"})
		assert.Equal(http.StatusInternalServerError, res.StatusCode)
		assert.Contains(body["error"], "backend error")
	})

	t.Run("Structure And Insert", func(t *testing.T) {
		res, body := doJSON(t, http.MethodGet, base+"/tables/people", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Len(body["columns"], 3)

		res, body = doJSON(t, http.MethodPost, base+"/tables/people/records", `{"data":[{"id":1,"name":"Ada"},{"name":"Grace","extra":true}]}`)
		assert.Equal(http.StatusCreated, res.StatusCode)
		assert.EqualValues(2, body["rows_inserted"])

		res, _ = doJSON(t, http.MethodPost, base+"/tables/people/records", `{"data":{"unknown":1}}`)
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, _ = doJSON(t, http.MethodPost, base+"/tables/people/records", `{}`)
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, body = doJSON(t, http.MethodGet, base+"/tables/people/records?name=Grace", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		if assert.Len(body["records"], 1) {
			record := body["records"].([]any)[0].(map[string]any)
			assert.Equal("Grace", record["name"])
		}

		res, body = doJSON(t, http.MethodGet, base+"/tables/people/records?limit=1", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Len(body["records"], 1)

		res, _ = doJSON(t, http.MethodGet, base+"/tables/people/records?limit=zero", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		// Same limit rules as /results: above the maximum is rejected, not clamped.
		res, body = doJSON(t, http.MethodGet, base+"/tables/people/records?limit=5000", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)
		assert.Contains(body["error"], "maximum is 1000")
		res, _ = doJSON(t, http.MethodGet, base+"/results?limit=5000", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, _ = doJSON(t, http.MethodGet, base+"/tables/people/records?height=x", nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, _ = doJSON(t, http.MethodGet, base+"/tables/ghost", nil)
		assert.Equal(http.StatusNotFound, res.StatusCode)

		res, _ = doJSON(t, http.MethodGet, base+"/tables/"+url.PathEscape("bad name"), nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)
	})

	t.Run("Generate Without Model", func(t *testing.T) {
		res, _ := doJSON(t, http.MethodPost, base+"/templates/generate", models.TemplateRequest{Path: "/users", TableName: "people"})
		assert.Equal(http.StatusServiceUnavailable, res.StatusCode)
	})

	t.Run("Propose Save And Apply", func(t *testing.T) {
		res, body := doJSON(t, http.MethodPost, base+"/templates/propose", models.TemplateRequest{
			TemplateName: "people_v1",
			Path:         "/users",
			TableName:    "people",
			Save:         true,
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(true, body["saved"])
		assert.Equal(app.AuthorProposer, body["created_by"])

		res, body = doJSON(t, http.MethodPost, base+"/templates/people_v1/apply", models.ApplyTemplateRequest{
			Input:       mustParse(t, `{"id":"7","name":"Linus"}`),
			TargetTable: "people",
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(map[string]any{"id": float64(7), "name": "Linus"}, body["output"])
		assert.Equal(true, body["inserted"])

		res, _ = doJSON(t, http.MethodPost, base+"/templates/propose", models.TemplateRequest{Path: "/users"})
		assert.Equal(http.StatusBadRequest, res.StatusCode, "no table given")
	})

	t.Run("Manual Templates", func(t *testing.T) {
		res, _ := doJSON(t, http.MethodPost, base+"/templates", models.StoreTemplateRequest{
			TemplateName:    "upper",
			ConversionLogic: `output_data["name"] = input_data["name"].upper()`,
		})
		assert.Equal(http.StatusCreated, res.StatusCode)

		res, _ = doJSON(t, http.MethodPost, base+"/templates", models.StoreTemplateRequest{TemplateName: "empty"})
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		res, body := doJSON(t, http.MethodPost, base+"/templates/upper/apply", `{"input":{"name":"ada"}}`)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal(map[string]any{"name": "ADA"}, body["output"])

		res, _ = doJSON(t, http.MethodPost, base+"/templates/upper/apply", `{"input":{"id":1}}`)
		assert.Equal(http.StatusUnprocessableEntity, res.StatusCode)

		res, body = doJSON(t, http.MethodGet, base+"/templates", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Len(body["templates"], 2)

		res, body = doJSON(t, http.MethodGet, base+"/templates/upper", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal(app.AuthorManual, body["created_by"])

		res, _ = doJSON(t, http.MethodGet, base+"/templates/missing", nil)
		assert.Equal(http.StatusNotFound, res.StatusCode)
	})

	t.Run("Status", func(t *testing.T) {
		res, body := doJSON(t, http.MethodGet, base+"/status", nil)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal("sqlite", body["store_backend"])
		assert.Equal(false, body["generation_available"])
	})
}

func mustParse(t *testing.T, s string) jsonval.Value {
	t.Helper()
	v, err := jsonval.ParseString(s)
	require.NoError(t, err)
	return v
}
