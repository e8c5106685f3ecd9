package lang

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codeweaver/core/internal/chunk"
)

func init() {
	rules := map[string]Rule{
		"function_declaration":  {chunk.ClassificationFunction, 0.8, "name"},
		"method_definition":     {chunk.ClassificationFunction, 0.8, "name"},
		"arrow_function":        {chunk.ClassificationFunction, 0.6, ""},
		"function_expression":   {chunk.ClassificationFunction, 0.6, "name"},
		"class_declaration":     {chunk.ClassificationTypeDef, 0.8, "name"},
		"interface_declaration": {chunk.ClassificationTypeDef, 0.75, "name"},
		"type_alias_declaration": {chunk.ClassificationTypeDef, 0.6, "name"},
		"enum_declaration":      {chunk.ClassificationTypeDef, 0.7, "name"},
		"if_statement":          {chunk.ClassificationControlFlow, 0.4, ""},
		"for_statement":         {chunk.ClassificationControlFlow, 0.4, ""},
		"for_in_statement":      {chunk.ClassificationControlFlow, 0.4, ""},
		"while_statement":       {chunk.ClassificationControlFlow, 0.4, ""},
		"switch_statement":      {chunk.ClassificationControlFlow, 0.4, ""},
		"try_statement":         {chunk.ClassificationControlFlow, 0.4, ""},
		"call_expression":       {chunk.ClassificationCall, 0.35, "function"},
		"variable_declaration":  {chunk.ClassificationLiteral, 0.3, ""},
		"lexical_declaration":   {chunk.ClassificationLiteral, 0.3, ""},
		"comment":               {chunk.ClassificationComment, 0.1, ""},
		"program":                {chunk.ClassificationStructural, 0.2, ""},
		"statement_block":        {chunk.ClassificationStructural, 0.15, ""},
	}
	// discovery.go maps both .ts and .tsx to the "typescript" language tag;
	// the TSX grammar is a strict superset (adds JSX node kinds) so one
	// registration covers both extensions.
	Register(Spec{Name: "typescript", Language: sitter.NewLanguage(typescript.LanguageTSX()), Rules: rules})
}
