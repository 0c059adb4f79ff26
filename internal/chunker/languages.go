package chunker

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// strategies indexes the registered language strategies by extension.
var strategies = buildStrategyIndex(
	newGoStrategy(),
	newPythonStrategy(),
	newJavaScriptStrategy(),
	newTypeScriptStrategy(),
	newJavaStrategy(),
	newCSharpStrategy(),
)

func buildStrategyIndex(all ...*strategy) map[string]*strategy {
	index := make(map[string]*strategy)
	for _, s := range all {
		for _, ext := range s.extensions {
			index[ext] = s
		}
	}
	return index
}

// strategyForPath returns the strategy for a file path, or nil when the
// extension has no registered grammar.
func strategyForPath(path string) *strategy {
	return strategies[strings.ToLower(filepath.Ext(path))]
}

func newGoStrategy() *strategy {
	return &strategy{
		language:   "go",
		extensions: []string{".go"},
		sitterLang: golang.GetLanguage(),
		typeKinds: map[string]string{
			"type_declaration": SemanticStruct,
		},
		memberKinds: map[string]string{
			"function_declaration": SemanticMethod,
			"method_declaration":   SemanticMethod,
			"const_declaration":    SemanticField,
			"var_declaration":      SemanticField,
		},
		refineKind: func(node *sitter.Node, kind string) string {
			for i := 0; i < int(node.NamedChildCount()); i++ {
				spec := node.NamedChild(i)
				if spec.Type() != "type_spec" {
					continue
				}
				if t := spec.ChildByFieldName("type"); t != nil && t.Type() == "interface_type" {
					return SemanticInterface
				}
			}
			return kind
		},
	}
}

func newPythonStrategy() *strategy {
	return &strategy{
		language:   "python",
		extensions: []string{".py"},
		sitterLang: python.GetLanguage(),
		typeKinds: map[string]string{
			"class_definition": SemanticClass,
		},
		memberKinds: map[string]string{
			"function_definition": SemanticMethod,
		},
	}
}

func newJavaScriptStrategy() *strategy {
	return &strategy{
		language:   "javascript",
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		sitterLang: javascript.GetLanguage(),
		typeKinds: map[string]string{
			"class_declaration": SemanticClass,
		},
		memberKinds: map[string]string{
			"function_declaration":           SemanticMethod,
			"generator_function_declaration": SemanticMethod,
			"method_definition":              SemanticMethod,
		},
	}
}

func newTypeScriptStrategy() *strategy {
	return &strategy{
		language:   "typescript",
		extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		sitterLang: typescript.GetLanguage(),
		typeKinds: map[string]string{
			"class_declaration":          SemanticClass,
			"abstract_class_declaration": SemanticClass,
			"interface_declaration":      SemanticInterface,
			"enum_declaration":           SemanticClass,
		},
		memberKinds: map[string]string{
			"function_declaration":           SemanticMethod,
			"generator_function_declaration": SemanticMethod,
			"method_definition":              SemanticMethod,
			"public_field_definition":        SemanticField,
			"type_alias_declaration":         SemanticStruct,
		},
	}
}

func newJavaStrategy() *strategy {
	return &strategy{
		language:   "java",
		extensions: []string{".java"},
		sitterLang: java.GetLanguage(),
		typeKinds: map[string]string{
			"class_declaration":           SemanticClass,
			"interface_declaration":       SemanticInterface,
			"enum_declaration":            SemanticClass,
			"record_declaration":          SemanticRecord,
			"annotation_type_declaration": SemanticInterface,
		},
		memberKinds: map[string]string{
			"method_declaration":      SemanticMethod,
			"constructor_declaration": SemanticConstructor,
			"field_declaration":       SemanticField,
		},
	}
}

func newCSharpStrategy() *strategy {
	return &strategy{
		language:   "csharp",
		extensions: []string{".cs"},
		sitterLang: csharp.GetLanguage(),
		typeKinds: map[string]string{
			"class_declaration":     SemanticClass,
			"struct_declaration":    SemanticStruct,
			"record_declaration":    SemanticRecord,
			"interface_declaration": SemanticInterface,
			"enum_declaration":      SemanticClass,
		},
		memberKinds: map[string]string{
			"method_declaration":              SemanticMethod,
			"constructor_declaration":         SemanticConstructor,
			"destructor_declaration":          SemanticMethod,
			"property_declaration":            SemanticProperty,
			"field_declaration":               SemanticField,
			"event_declaration":               SemanticEvent,
			"event_field_declaration":         SemanticEvent,
			"indexer_declaration":             SemanticIndexer,
			"operator_declaration":            SemanticOperator,
			"conversion_operator_declaration": SemanticOperator,
			"delegate_declaration":            SemanticMethod,
		},
	}
}
