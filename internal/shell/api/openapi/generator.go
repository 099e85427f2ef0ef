// Package openapi builds an OpenAPI 3.0 document for the HTTP API by
// reflecting on the request and response types of each registered operation.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI 3.0 document from registered operations.
type Generator struct {
	title       string
	version     string
	description string
	operations  []Operation
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Operation describes one endpoint. Request and Response are zero values of
// the JSON body types; a nil Request means the endpoint takes no body.
type Operation struct {
	Method      string
	Path        string
	ID          string
	Summary     string
	Tag         string
	Request     any
	Response    any
	QueryParams []Param
	// Errors lists the non-2xx statuses the endpoint can return.
	Errors []int
}

// Param is a query parameter.
type Param struct {
	Name        string
	Description string
	Integer     bool
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "nsorder API",
		version:     "1.0.0",
		description: "Reorder, analyze and deploy appliance configuration",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Register adds an operation to the document.
func (g *Generator) Register(op Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.operations = append(g.operations, op)
	g.cachedSpec = nil // Invalidate cache
}

// Generate produces the complete OpenAPI 3.0 document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Paths:      &openapi3.Paths{},
		Components: &openapi3.Components{},
	}

	for _, op := range g.operations {
		item := spec.Paths.Value(op.Path)
		if item == nil {
			item = &openapi3.PathItem{Parameters: pathParams(op.Path)}
			spec.Paths.Set(op.Path, item)
		}
		item.SetOperation(op.Method, g.operation(op))
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func (g *Generator) operation(op Operation) *openapi3.Operation {
	out := &openapi3.Operation{
		OperationID: op.ID,
		Summary:     op.Summary,
		Responses:   &openapi3.Responses{},
	}
	if op.Tag != "" {
		out.Tags = []string{op.Tag}
	}

	for _, p := range op.QueryParams {
		typ := "string"
		if p.Integer {
			typ = "integer"
		}
		out.Parameters = append(out.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:        p.Name,
				In:          "query",
				Description: p.Description,
				Schema: &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{typ}},
				},
			},
		})
	}

	if op.Request != nil {
		out.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content: openapi3.Content{
					"application/json": &openapi3.MediaType{
						Schema: schemaFor(reflect.TypeOf(op.Request)),
					},
				},
			},
		}
	}

	success := openapi3.NewResponse().WithDescription(http.StatusText(http.StatusOK))
	if op.Response != nil {
		success = success.WithJSONSchemaRef(schemaFor(reflect.TypeOf(op.Response)))
	}
	out.Responses.Set("200", &openapi3.ResponseRef{Value: success})

	for _, status := range op.Errors {
		resp := openapi3.NewResponse().
			WithDescription(http.StatusText(status)).
			WithJSONSchemaRef(errorSchema())
		out.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	}

	return out
}

// pathParams declares a string parameter for every {name} segment in path.
func pathParams(path string) openapi3.Parameters {
	var params openapi3.Parameters
	for _, seg := range strings.Split(path, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		params = append(params, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     strings.Trim(seg, "{}"),
				In:       "path",
				Required: true,
				Schema: &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
				},
			},
		})
	}
	return params
}

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"code":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
			Required: []string{"error", "code"},
		},
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

// schemaFor converts a Go type to an inline OpenAPI schema, following
// encoding/json field naming.
func schemaFor(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaFor(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFor(t.Elem())},
			},
		}

	case reflect.Ptr:
		schema := schemaFor(t.Elem())
		schema.Value.Nullable = true
		return schema

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return structSchema(t)

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

func structSchema(t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, tagged, omit := jsonName(field)
		if omit {
			continue
		}

		// Untagged embedded structs are flattened into the parent, even when
		// the embedded type itself is unexported
		if field.Anonymous && !tagged && field.Type.Kind() == reflect.Struct {
			embedded := structSchema(field.Type).Value
			for k, v := range embedded.Properties {
				schema.Properties[k] = v
			}
			continue
		}

		if !field.IsExported() {
			continue
		}
		schema.Properties[name] = schemaFor(field.Type)
	}

	return &openapi3.SchemaRef{Value: schema}
}

// jsonName returns the JSON property name of a field, whether the json tag
// named it, and whether the field is skipped.
func jsonName(field reflect.StructField) (string, bool, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name, false, false
	}
	return name, true, false
}
