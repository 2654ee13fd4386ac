// internal/openapi/catalog.go
package openapi

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/erraggy/oastools/parser"
	"github.com/erraggy/oastools/validator"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Format is the serialization of a spec document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat guesses the format from the first non-space byte.
func DetectFormat(content []byte) Format {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// FormatFromFilename maps a file extension onto a Format, falling back to
// content sniffing for unknown extensions.
func FormatFromFilename(name string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return DetectFormat(content)
}

// ParseFormat validates a user supplied format name. Empty means detect.
func ParseFormat(name string, content []byte) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DetectFormat(content), nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q (expected yaml or json)", ErrParse, name)
}

// Parameter describes one declared operation parameter.
type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Response keeps the raw response object of one status code.
type Response struct {
	StatusCode  string        `json:"status_code"`
	Description string        `json:"description,omitempty"`
	Raw         jsonval.Value `json:"raw"`
}

// Endpoint is a GET operation extracted from the document.
type Endpoint struct {
	Path        string      `json:"path"`
	Method      string      `json:"method"`
	Summary     string      `json:"summary,omitempty"`
	Description string      `json:"description,omitempty"`
	Parameters  []Parameter `json:"parameters"`
	Responses   []Response  `json:"responses"`
}

// Response returns the response descriptor for a status code.
func (e Endpoint) Response(code string) (Response, bool) {
	for _, r := range e.Responses {
		if r.StatusCode == code {
			return r, true
		}
	}
	return Response{}, false
}

// StatusCodes lists declared status codes in document order.
func (e Endpoint) StatusCodes() []string {
	codes := make([]string, 0, len(e.Responses))
	for _, r := range e.Responses {
		codes = append(codes, r.StatusCode)
	}
	return codes
}

// Catalog is the normalized, read-only model of a loaded spec.
type Catalog struct {
	Title      string
	Version    string
	OASVersion string
	BaseURL    string

	doc       jsonval.Value
	endpoints []Endpoint
	index     map[string]int
}

type loadOptions struct {
	strict bool
}

// Option adjusts Load behaviour.
type Option func(*loadOptions)

// WithStrictValidation runs the full OpenAPI validator in addition to the
// parser's structural checks.
func WithStrictValidation(enabled bool) Option {
	return func(o *loadOptions) { o.strict = enabled }
}

// Load parses spec text and builds the endpoint catalog. Syntax failures
// wrap ErrParse; structural rejections wrap ErrInvalid.
func Load(content []byte, format Format, opts ...Option) (*Catalog, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := decodeDocument(content, format)
	if err != nil {
		customLog.Warnf("SpecModel: failed to parse %s document: %v", format, err)
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: document root must be a mapping, got %s", ErrParse, doc.Kind())
	}

	if err := checkStructure(content, o.strict); err != nil {
		customLog.Warnf("SpecModel: structural validation rejected document: %v", err)
		return nil, err
	}

	c := &Catalog{
		doc:   doc,
		index: make(map[string]int),
	}
	c.OASVersion = stringAt(doc, "openapi")
	if c.OASVersion == "" {
		c.OASVersion = stringAt(doc, "swagger")
	}
	c.Title = stringAt(doc, "info.title")
	c.Version = stringAt(doc, "info.version")
	c.BaseURL = resolveBaseURL(doc)
	c.endpoints = extractEndpoints(doc)
	for i, ep := range c.endpoints {
		c.index[ep.Path] = i
	}

	customLog.Printf("SpecModel: loaded %q (%s) with %d GET endpoints, base URL %s",
		c.Title, c.OASVersion, len(c.endpoints), c.BaseURL)
	return c, nil
}

func decodeDocument(content []byte, format Format) (jsonval.Value, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return jsonval.Value{}, fmt.Errorf("empty document")
	}
	switch format {
	case FormatJSON:
		return jsonval.Parse(content)
	case FormatYAML, "":
		return jsonval.ParseYAML(content)
	}
	return jsonval.Value{}, fmt.Errorf("unsupported format %q", format)
}

// checkStructure delegates structural validation to oastools.
func checkStructure(content []byte, strict bool) error {
	result, err := parser.ParseWithOptions(
		parser.WithBytes(content),
		parser.WithResolveRefs(false),
		parser.WithValidateStructure(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	if !strict {
		return nil
	}

	vr, err := validator.New().ValidateParsed(*result)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !vr.Valid {
		msgs := make([]string, 0, len(vr.Errors))
		for _, e := range vr.Errors {
			if e.Path != "" {
				msgs = append(msgs, e.Path+": "+e.Message)
			} else {
				msgs = append(msgs, e.Message)
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

var serverVarPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// resolveBaseURL applies servers[0], then host+basePath, then localhost.
func resolveBaseURL(doc jsonval.Value) string {
	if servers, ok := doc.Get("servers"); ok {
		if first, ok := servers.Index(0); ok {
			if u := stringAt(first, "url"); u != "" {
				vars, _ := first.Get("variables")
				return serverVarPattern.ReplaceAllStringFunc(u, func(m string) string {
					name := m[1 : len(m)-1]
					if def := stringAt(vars, name+".default"); def != "" {
						return def
					}
					return m
				})
			}
		}
	}

	host := stringAt(doc, "host")
	if host == "" {
		host = "localhost"
	}
	base := "https://" + host
	if basePath := strings.Trim(stringAt(doc, "basePath"), "/"); basePath != "" {
		base += "/" + basePath
	}
	return base
}

var skippedLocations = map[string]bool{
	"body":     true,
	"formData": true,
}

func extractEndpoints(doc jsonval.Value) []Endpoint {
	paths, ok := doc.Get("paths")
	if !ok {
		return []Endpoint{}
	}
	endpoints := make([]Endpoint, 0, paths.Len())
	for _, item := range paths.Members() {
		pathItem := item.Value
		if ref, ok := refOf(pathItem); ok {
			if target, err := lookupRef(doc, ref); err == nil {
				pathItem = target
			}
		}
		op, ok := pathItem.Get("get")
		if !ok || !op.IsObject() {
			continue
		}

		ep := Endpoint{
			Path:        item.Key,
			Method:      "GET",
			Summary:     stringAt(op, "summary"),
			Description: stringAt(op, "description"),
			Parameters:  mergeParameters(doc, pathItem, op),
			Responses:   []Response{},
		}
		if responses, ok := op.Get("responses"); ok {
			for _, r := range responses.Members() {
				raw := r.Value
				if ref, ok := refOf(raw); ok {
					if target, err := lookupRef(doc, ref); err == nil {
						raw = target
					}
				}
				ep.Responses = append(ep.Responses, Response{
					StatusCode:  r.Key,
					Description: stringAt(raw, "description"),
					Raw:         raw,
				})
			}
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints
}

// mergeParameters combines path-item and operation parameters. Operation
// entries override path-item entries of the same name.
func mergeParameters(doc, pathItem, op jsonval.Value) []Parameter {
	params := []Parameter{}
	seen := map[string]int{}
	add := func(list jsonval.Value) {
		for _, raw := range list.Items() {
			if ref, ok := refOf(raw); ok {
				target, err := lookupRef(doc, ref)
				if err != nil {
					customLog.Warnf("SpecModel: skipping parameter with unresolved ref %s", ref)
					continue
				}
				raw = target
			}
			p := Parameter{
				Name:        stringAt(raw, "name"),
				In:          stringAt(raw, "in"),
				Type:        stringAt(raw, "type"),
				Description: stringAt(raw, "description"),
			}
			if p.Name == "" || skippedLocations[p.In] {
				continue
			}
			if p.Type == "" {
				p.Type = stringAt(raw, "schema.type")
			}
			if p.Type == "" {
				p.Type = "string"
			}
			if req, ok := raw.Get("required"); ok {
				p.Required, _ = req.AsBool()
			}
			if p.In == "path" {
				p.Required = true
			}
			if i, dup := seen[p.Name]; dup {
				params[i] = p
				continue
			}
			seen[p.Name] = len(params)
			params = append(params, p)
		}
	}
	if list, ok := pathItem.Get("parameters"); ok {
		add(list)
	}
	if list, ok := op.Get("parameters"); ok {
		add(list)
	}
	return params
}

// Endpoints returns the GET endpoints in document order.
func (c *Catalog) Endpoints() []Endpoint {
	out := make([]Endpoint, len(c.endpoints))
	copy(out, c.endpoints)
	return out
}

// Endpoint looks up an endpoint by path.
func (c *Catalog) Endpoint(path string) (Endpoint, error) {
	i, ok := c.index[path]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: GET %s", ErrEndpointAbsent, path)
	}
	return c.endpoints[i], nil
}

// Paths lists endpoint paths sorted alphabetically.
func (c *Catalog) Paths() []string {
	out := make([]string, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		out = append(out, ep.Path)
	}
	sort.Strings(out)
	return out
}

// Document exposes the parsed document tree.
func (c *Catalog) Document() jsonval.Value {
	return c.doc
}

func stringAt(v jsonval.Value, path string) string {
	node, ok := v.Path(path)
	if !ok {
		return ""
	}
	if s, ok := node.AsString(); ok {
		return s
	}
	if n, ok := node.AsNumber(); ok {
		return string(n)
	}
	return ""
}
