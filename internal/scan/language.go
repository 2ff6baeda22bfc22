package scan

import (
	"path/filepath"
	"strings"
)

// RuleKind distinguishes line comments from block comments.
type RuleKind int

const (
	// SingleLine comments run from Begin to end of line.
	SingleLine RuleKind = iota
	// MultiLine comments run from Begin to End, possibly across lines.
	MultiLine
)

// Rule is one comment delimiter of a language.
type Rule struct {
	Kind  RuleKind
	Begin string
	End   string
}

// ID identifies the rule by its delimiters.
func (r Rule) ID() string {
	if r.Kind == MultiLine {
		return r.Begin + " " + r.End
	}
	return r.Begin
}

var (
	slashSlash = Rule{Kind: SingleLine, Begin: "//"}
	slashStar  = Rule{Kind: MultiLine, Begin: "/*", End: "*/"}
	hash       = Rule{Kind: SingleLine, Begin: "#"}
	dashDash   = Rule{Kind: SingleLine, Begin: "--"}
	semicolon  = Rule{Kind: SingleLine, Begin: ";"}
	percent    = Rule{Kind: SingleLine, Begin: "%"}
	quote      = Rule{Kind: SingleLine, Begin: `"`}
	xmlComment = Rule{Kind: MultiLine, Begin: "<!--", End: "-->"}
	parenStar  = Rule{Kind: MultiLine, Begin: "(*", End: "*)"}
	cFamily    = []Rule{slashSlash, slashStar}
)

// languageRules maps a language ID to its delimiter set.
var languageRules = map[string][]Rule{
	"go":              cFamily,
	"c":               cFamily,
	"cpp":             cFamily,
	"csharp":          cFamily,
	"java":            cFamily,
	"javascript":      cFamily,
	"javascriptreact": cFamily,
	"typescript":      cFamily,
	"typescriptreact": cFamily,
	"rust":            cFamily,
	"swift":           cFamily,
	"kotlin":          cFamily,
	"scala":           cFamily,
	"protobuf":        cFamily,
	"scss":            cFamily,
	"less":            cFamily,
	"php":             {slashSlash, slashStar, hash},
	"css":             {slashStar},
	"python":          {hash},
	"ruby":            {hash, {Kind: MultiLine, Begin: "=begin", End: "=end"}},
	"shellscript":     {hash},
	"yaml":            {hash},
	"toml":            {hash},
	"r":               {hash},
	"julia":           {hash, {Kind: MultiLine, Begin: "#=", End: "=#"}},
	"elixir":          {hash},
	"dockerfile":      {hash},
	"graphql":         {hash},
	"powershell":      {hash, {Kind: MultiLine, Begin: "<#", End: "#>"}},
	"sql":             {dashDash, slashStar},
	"lua":             {dashDash, {Kind: MultiLine, Begin: "--[[", End: "]]"}},
	"haskell":         {dashDash, {Kind: MultiLine, Begin: "{-", End: "-}"}},
	"html":            {xmlComment},
	"xml":             {xmlComment},
	"markdown":        {xmlComment},
	"ini":             {semicolon, hash},
	"clojure":         {semicolon},
	"erlang":          {percent},
	"vim":             {quote},
	"ocaml":           {parenStar},
	"fsharp":          {slashSlash, parenStar},
}

// extensionLanguages maps lower-case file extensions to language IDs.
var extensionLanguages = map[string]string{
	".go":         "go",
	".py":         "python",
	".js":         "javascript",
	".mjs":        "javascript",
	".ts":         "typescript",
	".jsx":        "javascriptreact",
	".tsx":        "typescriptreact",
	".rs":         "rust",
	".rb":         "ruby",
	".java":       "java",
	".c":          "c",
	".cpp":        "cpp",
	".cc":         "cpp",
	".cxx":        "cpp",
	".h":          "cpp",
	".hpp":        "cpp",
	".cs":         "csharp",
	".php":        "php",
	".swift":      "swift",
	".kt":         "kotlin",
	".kts":        "kotlin",
	".scala":      "scala",
	".html":       "html",
	".htm":        "html",
	".css":        "css",
	".scss":       "scss",
	".less":       "less",
	".json":       "json",
	".yaml":       "yaml",
	".yml":        "yaml",
	".xml":        "xml",
	".xaml":       "xml",
	".csproj":     "xml",
	".md":         "markdown",
	".markdown":   "markdown",
	".sql":        "sql",
	".sh":         "shellscript",
	".bash":       "shellscript",
	".ps1":        "powershell",
	".dockerfile": "dockerfile",
	".lua":        "lua",
	".r":          "r",
	".jl":         "julia",
	".ex":         "elixir",
	".exs":        "elixir",
	".erl":        "erlang",
	".hs":         "haskell",
	".ml":         "ocaml",
	".mli":        "ocaml",
	".fs":         "fsharp",
	".fsi":        "fsharp",
	".fsx":        "fsharp",
	".clj":        "clojure",
	".cljs":       "clojure",
	".cljc":       "clojure",
	".vim":        "vim",
	".toml":       "toml",
	".ini":        "ini",
	".cfg":        "ini",
	".proto":      "protobuf",
	".graphql":    "graphql",
	".gql":        "graphql",
	".txt":        "plaintext",
}

// fileNameLanguages covers well-known files without a useful extension.
var fileNameLanguages = map[string]string{
	"dockerfile":  "dockerfile",
	"makefile":    "shellscript",
	"gnumakefile": "shellscript",
	".gitignore":  "shellscript",
}

var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".lib": true,
	".o": true, ".obj": true, ".pdb": true, ".class": true, ".jar": true, ".pyc": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".webp": true, ".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".7z": true,
	".rar": true, ".tar": true, ".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	".mp3": true, ".mp4": true, ".wav": true, ".mov": true, ".avi": true, ".db": true,
	".sqlite": true, ".wasm": true, ".bin": true, ".snk": true, ".nupkg": true,
}

// IsBinaryPath reports whether the extension names a known binary format.
func IsBinaryPath(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}

// Language returns the language ID for path.
func Language(path string) (string, bool) {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := fileNameLanguages[base]; ok {
		return lang, true
	}
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(base))]
	return lang, ok
}

// Lookup returns the delimiter rules of a language. Plain text, JSON and
// unknown languages have none and are therefore unscannable.
func Lookup(lang string) ([]Rule, bool) {
	rules, ok := languageRules[lang]
	return rules, ok && len(rules) > 0
}

// RulesForPath combines the binary check, Language and Lookup.
func RulesForPath(path string) ([]Rule, bool) {
	if IsBinaryPath(path) {
		return nil, false
	}
	lang, ok := Language(path)
	if !ok {
		return nil, false
	}
	return Lookup(lang)
}
