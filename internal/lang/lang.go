package lang

// Language represents a supported source language.
type Language string

const (
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{JavaScript, TypeScript, TSX}
}

// LanguageSpec defines the tree-sitter node kinds for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	// FunctionNodeTypes lists node kinds that declare a callable unit.
	FunctionNodeTypes []string
	// CallNodeTypes lists call-expression node kinds.
	CallNodeTypes []string

	// LoopNodeTypes lists loop construct node kinds (for/while/do/for-in/for-of).
	LoopNodeTypes []string
	// ConditionalNodeTypes lists branching node kinds counted toward complexity.
	ConditionalNodeTypes []string

	// ThrowNodeTypes lists throw statement node kinds.
	ThrowNodeTypes []string
	// CatchNodeTypes lists catch clause node kinds.
	CatchNodeTypes []string
	// TryNodeTypes lists try statement node kinds.
	TryNodeTypes []string
	// AwaitNodeTypes lists await expression node kinds.
	AwaitNodeTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".ts").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
