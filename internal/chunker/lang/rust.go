package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "rust",
		Language: sitter.NewLanguage(rust.Language()),
		Rules: map[string]Rule{
			"function_item":    {chunk.ClassificationFunction, 0.8, "name"},
			"closure_expression": {chunk.ClassificationFunction, 0.5, ""},
			"struct_item":      {chunk.ClassificationTypeDef, 0.8, "name"},
			"enum_item":        {chunk.ClassificationTypeDef, 0.8, "name"},
			"trait_item":       {chunk.ClassificationTypeDef, 0.75, "name"},
			"impl_item":        {chunk.ClassificationTypeDef, 0.6, "type"},
			"if_expression":    {chunk.ClassificationControlFlow, 0.4, ""},
			"for_expression":   {chunk.ClassificationControlFlow, 0.4, ""},
			"while_expression": {chunk.ClassificationControlFlow, 0.4, ""},
			"match_expression": {chunk.ClassificationControlFlow, 0.4, ""},
			"loop_expression":  {chunk.ClassificationControlFlow, 0.35, ""},
			"call_expression":  {chunk.ClassificationCall, 0.35, "function"},
			"macro_invocation": {chunk.ClassificationCall, 0.3, "macro"},
			"let_declaration":  {chunk.ClassificationLiteral, 0.3, "pattern"},
			"line_comment":     {chunk.ClassificationComment, 0.1, ""},
			"block_comment":    {chunk.ClassificationComment, 0.1, ""},
			"source_file":      {chunk.ClassificationStructural, 0.2, ""},
			"block":            {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
