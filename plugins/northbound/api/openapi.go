package api

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

func buildOpenAPISpec(sliceControl bool) *openapi3.T {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "tpc API",
			Description: "Slice, checker and attack policy programming",
			Version:     "1.0.0",
		},
		Paths: &openapi3.Paths{},
		Tags: openapi3.Tags{
			{Name: "Policy", Description: "Flow rule and meter programming"},
			{Name: "General", Description: "General API endpoints"},
		},
	}

	addCommand(spec, "/flush", "flushFlowRules", "Remove every flow rule and meter owned by tpc")
	addRows(spec, "/add_attack", "postAttackEntries", "Install attack rewrite and duplicate rules", AttackRow{})

	if sliceControl {
		addCommand(spec, "/turn_on_checking", "turnOnChecking", "Install checker and ACL punt rules")
		addCommand(spec, "/turn_off_checking", "turnOffChecking", "Remove checker rules")
		addRows(spec, "/add_slice_id", "postSliceIdEntries", "Bind ports to slices", SliceIDRow{})
		addRows(spec, "/add_slice_qos", "postSliceQoSEntries", "Configure per-slice meters", SliceQoSRow{})
	}

	spec.Paths.Set(BasePath+"/openapi.json", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"General"},
			Summary:     "This document",
			OperationID: "getOpenAPI",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(200, &openapi3.ResponseRef{
					Value: &openapi3.Response{Description: ptr("OpenAPI document")},
				}),
			),
		},
	})

	spec.Paths.Set(BasePath+"/status", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"General"},
			Summary:     "API server status",
			OperationID: "getStatus",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(200, &openapi3.ResponseRef{
					Value: &openapi3.Response{
						Description: ptr("Server state"),
						Content: openapi3.NewContentWithJSONSchemaRef(
							schemaFromType(reflect.TypeOf(Status{})),
						),
					},
				}),
			),
		},
	})

	return spec
}

func policyResponses(withBadRequest bool) *openapi3.Responses {
	responses := openapi3.NewResponses(
		openapi3.WithStatus(204, &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: ptr("Applied")},
		}),
		openapi3.WithStatus(500, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: ptr("Southbound failure"),
				Content: openapi3.NewContentWithJSONSchemaRef(
					schemaFromType(reflect.TypeOf(ErrorResponse{})),
				),
			},
		}),
	)
	if withBadRequest {
		responses.Set("400", &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: ptr("Body is not a JSON object"),
				Content: openapi3.NewContentWithJSONSchemaRef(
					schemaFromType(reflect.TypeOf(ErrorResponse{})),
				),
			},
		})
	}
	return responses
}

func addCommand(spec *openapi3.T, path, operationID, summary string) {
	spec.Paths.Set(BasePath+path, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"Policy"},
			Summary:     summary,
			OperationID: operationID,
			Responses:   policyResponses(false),
		},
	})
}

// addRows documents a POST whose body maps arbitrary row names to row objects.
func addRows(spec *openapi3.T, path, operationID, summary string, row any) {
	body := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFromType(reflect.TypeOf(row))},
		},
	}

	spec.Paths.Set(BasePath+path, &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Policy"},
			Summary:     summary,
			Description: "Rows that are missing a field or carry an unparseable value are skipped.",
			OperationID: operationID,
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithContent(openapi3.NewContentWithJSONSchemaRef(body)),
			},
			Responses: policyResponses(true),
		},
	})
}

func schemaFromType(t reflect.Type) *openapi3.SchemaRef {
	if t == nil {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == reflect.TypeOf(time.Time{}) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	}

	if t == reflect.TypeOf(time.Duration(0)) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Description: "Duration in nanoseconds"}}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "byte"}}
		}
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaFromType(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFromType(t.Elem())},
			},
		}

	case reflect.Struct:
		return structToSchema(t)

	case reflect.Interface:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
}

func structToSchema(t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := openapi3.Schemas{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}

		propSchema := schemaFromType(field.Type)

		if desc := field.Tag.Get("description"); desc != "" {
			propSchema.Value.Description = desc
		}

		if !omitempty {
			required = append(required, name)
		}
		properties[name] = propSchema
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
			Required:   required,
		},
	}
}

func ptr(s string) *string {
	return &s
}
