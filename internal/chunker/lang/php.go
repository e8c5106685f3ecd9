package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "php",
		Language: sitter.NewLanguage(php.LanguagePHP()),
		Rules: map[string]Rule{
			"function_definition":    {chunk.ClassificationFunction, 0.8, "name"},
			"method_declaration":     {chunk.ClassificationFunction, 0.8, "name"},
			"class_declaration":      {chunk.ClassificationTypeDef, 0.8, "name"},
			"interface_declaration":  {chunk.ClassificationTypeDef, 0.75, "name"},
			"trait_declaration":      {chunk.ClassificationTypeDef, 0.7, "name"},
			"enum_declaration":       {chunk.ClassificationTypeDef, 0.7, "name"},
			"if_statement":           {chunk.ClassificationControlFlow, 0.4, ""},
			"foreach_statement":      {chunk.ClassificationControlFlow, 0.4, ""},
			"for_statement":          {chunk.ClassificationControlFlow, 0.4, ""},
			"while_statement":        {chunk.ClassificationControlFlow, 0.4, ""},
			"switch_statement":       {chunk.ClassificationControlFlow, 0.4, ""},
			"try_statement":          {chunk.ClassificationControlFlow, 0.4, ""},
			"function_call_expression": {chunk.ClassificationCall, 0.35, "function"},
			"member_call_expression":   {chunk.ClassificationCall, 0.35, "name"},
			"expression_statement":   {chunk.ClassificationLiteral, 0.2, ""},
			"comment":                {chunk.ClassificationComment, 0.1, ""},
			"program":                {chunk.ClassificationStructural, 0.2, ""},
			"compound_statement":     {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
