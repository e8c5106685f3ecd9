package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "java",
		Language: sitter.NewLanguage(java.Language()),
		Rules: map[string]Rule{
			"method_declaration":      {chunk.ClassificationFunction, 0.8, "name"},
			"constructor_declaration": {chunk.ClassificationFunction, 0.75, "name"},
			"class_declaration":       {chunk.ClassificationTypeDef, 0.8, "name"},
			"interface_declaration":   {chunk.ClassificationTypeDef, 0.75, "name"},
			"enum_declaration":        {chunk.ClassificationTypeDef, 0.7, "name"},
			"record_declaration":      {chunk.ClassificationTypeDef, 0.7, "name"},
			"if_statement":            {chunk.ClassificationControlFlow, 0.4, ""},
			"for_statement":           {chunk.ClassificationControlFlow, 0.4, ""},
			"enhanced_for_statement":  {chunk.ClassificationControlFlow, 0.4, ""},
			"while_statement":         {chunk.ClassificationControlFlow, 0.4, ""},
			"switch_expression":       {chunk.ClassificationControlFlow, 0.4, ""},
			"try_statement":           {chunk.ClassificationControlFlow, 0.4, ""},
			"method_invocation":       {chunk.ClassificationCall, 0.35, "name"},
			"local_variable_declaration": {chunk.ClassificationLiteral, 0.3, ""},
			"field_declaration":       {chunk.ClassificationLiteral, 0.3, ""},
			"line_comment":            {chunk.ClassificationComment, 0.1, ""},
			"block_comment":           {chunk.ClassificationComment, 0.1, ""},
			"program":                 {chunk.ClassificationStructural, 0.2, ""},
			"block":                   {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
