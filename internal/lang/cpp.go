package lang

import "github.com/smacker/go-tree-sitter/cpp"

func init() {
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx", ".h"},
		lang:       cpp.GetLanguage(),
	}
}
