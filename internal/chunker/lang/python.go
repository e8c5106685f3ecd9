package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "python",
		Language: sitter.NewLanguage(python.Language()),
		Rules: map[string]Rule{
			"function_definition": {chunk.ClassificationFunction, 0.8, "name"},
			"class_definition":    {chunk.ClassificationTypeDef, 0.8, "name"},
			"decorated_definition": {chunk.ClassificationFunction, 0.75, ""},
			"if_statement":         {chunk.ClassificationControlFlow, 0.4, ""},
			"for_statement":        {chunk.ClassificationControlFlow, 0.4, ""},
			"while_statement":      {chunk.ClassificationControlFlow, 0.4, ""},
			"try_statement":        {chunk.ClassificationControlFlow, 0.4, ""},
			"with_statement":       {chunk.ClassificationControlFlow, 0.35, ""},
			"match_statement":      {chunk.ClassificationControlFlow, 0.4, ""},
			"call":                 {chunk.ClassificationCall, 0.35, "function"},
			"assignment":           {chunk.ClassificationLiteral, 0.3, "left"},
			"comment":              {chunk.ClassificationComment, 0.1, ""},
			"module":               {chunk.ClassificationStructural, 0.2, ""},
			"block":                {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
