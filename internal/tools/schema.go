package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// BuildSchema reflects a parameter struct into a JSON Schema object.
// Fields use the json tag for their name and the jsonschema tag for
// description, enum, default and required, for example:
//
//	type Args struct {
//	    Ticker string `json:"ticker" jsonschema:"description=Stock ticker symbol,required"`
//	}
func BuildSchema(v any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(v)

	b, err := json.Marshal(s)
	if err != nil {
		return emptySchema()
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return emptySchema()
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// ValidateArgs checks args against a tool's parameter schema.
func ValidateArgs(tool string, schema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		return NewInvalidArgsError(tool, "schema could not be evaluated", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return NewInvalidArgsError(tool, strings.Join(msgs, "; "), nil)
}

// ParseArgs decodes a model-supplied argument string. An empty string is
// treated as an empty object.
func ParseArgs(tool, raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, NewInvalidArgsError(tool, fmt.Sprintf("arguments are not a JSON object: %q", raw), err)
	}
	return args, nil
}
