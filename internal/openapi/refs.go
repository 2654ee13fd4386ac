// internal/openapi/refs.go
package openapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// refOf reports the target of a {"$ref": "..."} node.
func refOf(v jsonval.Value) (string, bool) {
	raw, ok := v.Get("$ref")
	if !ok {
		return "", false
	}
	ref, ok := raw.AsString()
	return ref, ok
}

// lookupRef walks an internal reference ("#/a/b/c") from the document root.
func lookupRef(doc jsonval.Value, ref string) (jsonval.Value, error) {
	if !strings.HasPrefix(ref, "#") {
		return jsonval.Value{}, fmt.Errorf("%w: %s (only document-internal references are supported)", ErrUnresolvedRef, ref)
	}
	pointer := strings.TrimPrefix(ref, "#")
	if pointer == "" {
		return doc, nil
	}
	cur := doc
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		seg = unescapePointer(seg)
		switch cur.Kind() {
		case jsonval.Object:
			next, ok := cur.Get(seg)
			if !ok {
				return jsonval.Value{}, fmt.Errorf("%w: %s (segment %q not found)", ErrUnresolvedRef, ref, seg)
			}
			cur = next
		case jsonval.Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return jsonval.Value{}, fmt.Errorf("%w: %s (segment %q is not an index)", ErrUnresolvedRef, ref, seg)
			}
			next, ok := cur.Index(i)
			if !ok {
				return jsonval.Value{}, fmt.Errorf("%w: %s (index %d out of range)", ErrUnresolvedRef, ref, i)
			}
			cur = next
		default:
			return jsonval.Value{}, fmt.Errorf("%w: %s (cannot descend into %s)", ErrUnresolvedRef, ref, cur.Kind())
		}
	}
	return cur, nil
}

func unescapePointer(seg string) string {
	if dec, err := url.PathUnescape(seg); err == nil {
		seg = dec
	}
	seg = strings.ReplaceAll(seg, "~1", "/")
	return strings.ReplaceAll(seg, "~0", "~")
}

// resolveDeep replaces every internal $ref below v with its target. A ref
// that recurses into itself is cut to an empty schema at the point of
// recursion.
func resolveDeep(doc, v jsonval.Value, stack []string) (jsonval.Value, error) {
	switch v.Kind() {
	case jsonval.Object:
		if ref, ok := refOf(v); ok {
			for _, seen := range stack {
				if seen == ref {
					return jsonval.ObjectValue(), nil
				}
			}
			target, err := lookupRef(doc, ref)
			if err != nil {
				return jsonval.Value{}, err
			}
			return resolveDeep(doc, target, append(stack, ref))
		}
		out := jsonval.ObjectValue()
		for _, m := range v.Members() {
			child, err := resolveDeep(doc, m.Value, stack)
			if err != nil {
				return jsonval.Value{}, err
			}
			out.Set(m.Key, child)
		}
		return out, nil
	case jsonval.Array:
		items := make([]jsonval.Value, 0, v.Len())
		for _, item := range v.Items() {
			child, err := resolveDeep(doc, item, stack)
			if err != nil {
				return jsonval.Value{}, err
			}
			items = append(items, child)
		}
		return jsonval.ArrayValue(items...), nil
	}
	return v, nil
}

// schemaOf picks the schema node of a response object: OpenAPI 3 content
// map first (application/json preferred), then the OpenAPI 2 schema field.
func schemaOf(resp jsonval.Value) (jsonval.Value, bool) {
	if content, ok := resp.Get("content"); ok {
		if media, ok := content.Get("application/json"); ok {
			if s, ok := media.Get("schema"); ok {
				return s, true
			}
		}
		for _, m := range content.Members() {
			if s, ok := m.Value.Get("schema"); ok {
				return s, true
			}
		}
		return jsonval.Value{}, false
	}
	if s, ok := resp.Get("schema"); ok {
		return s, true
	}
	return jsonval.Value{}, false
}

// ResolveSchema returns the fully dereferenced response schema for an
// endpoint and status code. found is false when the response or its schema
// is absent; a dangling reference is an ErrUnresolvedRef error.
func (c *Catalog) ResolveSchema(path, statusCode string) (schema jsonval.Value, found bool, err error) {
	ep, err := c.Endpoint(path)
	if err != nil {
		return jsonval.Value{}, false, err
	}
	resp, ok := ep.Response(statusCode)
	if !ok {
		return jsonval.Value{}, false, nil
	}
	raw, ok := schemaOf(resp.Raw)
	if !ok {
		return jsonval.Value{}, false, nil
	}
	resolved, err := resolveDeep(c.doc, raw, nil)
	if err != nil {
		customLog.Warnf("SpecModel: GET %s response %s: %v", path, statusCode, err)
		return jsonval.Value{}, false, err
	}
	return resolved, true, nil
}

// PrimarySchema resolves the schema of the first 2xx response, falling back
// to "default".
func (c *Catalog) PrimarySchema(path string) (code string, schema jsonval.Value, found bool, err error) {
	ep, err := c.Endpoint(path)
	if err != nil {
		return "", jsonval.Value{}, false, err
	}
	candidates := []string{}
	for _, sc := range ep.StatusCodes() {
		if strings.HasPrefix(sc, "2") {
			candidates = append(candidates, sc)
		}
	}
	candidates = append(candidates, "default")
	for _, sc := range candidates {
		s, ok, err := c.ResolveSchema(path, sc)
		if err != nil {
			return sc, jsonval.Value{}, false, err
		}
		if ok {
			return sc, s, true, nil
		}
	}
	return "", jsonval.Value{}, false, nil
}
