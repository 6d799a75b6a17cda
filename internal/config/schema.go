package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// CheckSchema validates raw configuration YAML against the embedded CUE
// schema. Unknown fields, wrong types and out-of-range scalars are reported
// with their source line.
func CheckSchema(data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Field: "schema", Code: ErrSchema, Message: fmt.Sprintf("internal schema error: %v", err)}}
	}

	file, err := cueyaml.Extract("config", data)
	if err != nil {
		return []ValidationError{{Field: "config", Code: ErrSchema, Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fromCUEError(err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUEError(err)
	}
	return nil
}

func fromCUEError(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "config"
		}
		format, args := e.Msg()
		ve := ValidationError{
			Field:   field,
			Code:    ErrSchema,
			Message: fmt.Sprintf(format, args...),
		}
		if pos := e.Position(); pos.IsValid() {
			ve.Line = pos.Line()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "config", Code: ErrSchema, Message: err.Error()})
	}
	return out
}
