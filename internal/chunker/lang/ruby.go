package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	Register(Spec{
		Name:     "ruby",
		Language: sitter.NewLanguage(ruby.Language()),
		Rules: map[string]Rule{
			"method":         {chunk.ClassificationFunction, 0.8, "name"},
			"singleton_method": {chunk.ClassificationFunction, 0.75, "name"},
			"class":          {chunk.ClassificationTypeDef, 0.8, "name"},
			"module":         {chunk.ClassificationTypeDef, 0.7, "name"},
			"if":             {chunk.ClassificationControlFlow, 0.4, ""},
			"unless":         {chunk.ClassificationControlFlow, 0.4, ""},
			"while":          {chunk.ClassificationControlFlow, 0.4, ""},
			"for":            {chunk.ClassificationControlFlow, 0.4, ""},
			"case":           {chunk.ClassificationControlFlow, 0.4, ""},
			"begin":          {chunk.ClassificationControlFlow, 0.35, ""},
			"call":           {chunk.ClassificationCall, 0.35, "method"},
			"method_call":    {chunk.ClassificationCall, 0.35, "method"},
			"assignment":     {chunk.ClassificationLiteral, 0.3, "left"},
			"comment":        {chunk.ClassificationComment, 0.1, ""},
			"program":        {chunk.ClassificationStructural, 0.2, ""},
			"body_statement": {chunk.ClassificationStructural, 0.15, ""},
		},
	})
}
