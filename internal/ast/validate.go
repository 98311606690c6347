package ast

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// execSchema is the single source of truth for what a Function node's
// Exec record may look like, the same job core/types/validation.go's
// ValidateParams does for decorator arguments in the teacher stack —
// here it guards AST construction instead of decorator dispatch.
var execSchema = compileSchema("exec.json", `{
	"type": "object",
	"properties": {
		"kind": {"type": "string", "enum": ["expr"]},
		"code": {"type": "string", "minLength": 1}
	},
	"required": ["kind", "code"],
	"additionalProperties": false
}`)

func compileSchema(name, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("ast: invalid built-in schema %s: %v", name, err))
	}
	schema, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("ast: schema %s failed to compile: %v", name, err))
	}
	return schema
}

func validateExec(e Exec) error {
	doc := map[string]interface{}{"kind": e.Kind, "code": e.Code}
	if err := execSchema.Validate(doc); err != nil {
		return invalidArgument(fmt.Sprintf("invalid exec record: %v", err), e)
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateDeclarations(decls map[string]interface{}) error {
	if decls == nil {
		return invalidArgument("let declarations must be a non-nil object", decls)
	}
	for k := range decls {
		if !identifierPattern.MatchString(k) {
			return invalidArgument(fmt.Sprintf("invalid let binding name %q", k), k)
		}
	}
	return nil
}
