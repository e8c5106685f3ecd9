package lang

import (
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "c",
		Language: sitter.NewLanguage(c.Language()),
		Rules: map[string]Rule{
			"function_definition": {chunk.ClassificationFunction, 0.8, "declarator"},
			"struct_specifier":    {chunk.ClassificationTypeDef, 0.75, "name"},
			"enum_specifier":      {chunk.ClassificationTypeDef, 0.7, "name"},
			"union_specifier":     {chunk.ClassificationTypeDef, 0.7, "name"},
			"type_definition":     {chunk.ClassificationTypeDef, 0.7, "declarator"},
			"if_statement":        {chunk.ClassificationControlFlow, 0.4, ""},
			"for_statement":       {chunk.ClassificationControlFlow, 0.4, ""},
			"while_statement":     {chunk.ClassificationControlFlow, 0.4, ""},
			"switch_statement":    {chunk.ClassificationControlFlow, 0.4, ""},
			"call_expression":     {chunk.ClassificationCall, 0.35, "function"},
			"declaration":         {chunk.ClassificationLiteral, 0.3, ""},
			"comment":             {chunk.ClassificationComment, 0.1, ""},
			"translation_unit":    {chunk.ClassificationStructural, 0.2, ""},
			"compound_statement":  {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
