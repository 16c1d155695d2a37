package graph

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// EntityVariant is the polymorphic kind of an Entity (spec §3).
type EntityVariant uint8

const (
	EntityFile EntityVariant = iota
	EntityDirectory
	EntityModule
	EntitySymbol
)

func (v EntityVariant) String() string {
	switch v {
	case EntityFile:
		return "file"
	case EntityDirectory:
		return "directory"
	case EntityModule:
		return "module"
	case EntitySymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// SymbolKind enumerates the symbol-specific entity kinds.
type SymbolKind uint8

const (
	SymbolFunction SymbolKind = iota
	SymbolClass
	SymbolInterface
	SymbolTypeAlias
	SymbolProperty
	SymbolVariable
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolClass:
		return "class"
	case SymbolInterface:
		return "interface"
	case SymbolTypeAlias:
		return "typeAlias"
	case SymbolProperty:
		return "property"
	case SymbolVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Visibility is a symbol's exposure level.
type Visibility uint8

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
	VisibilityProtected
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityPrivate:
		return "private"
	case VisibilityProtected:
		return "protected"
	default:
		return "public"
	}
}

// Parameter is one entry in a function/method's ordered parameter list.
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Optional bool  `json:"optional"`
	Default string `json:"default,omitempty"`
}

// FunctionDetail holds function/method-specific fields.
type FunctionDetail struct {
	Parameters  []Parameter `json:"parameters"`
	ReturnType  string      `json:"returnType"`
	IsAsync     bool        `json:"isAsync"`
	IsGenerator bool        `json:"isGenerator"`
	Complexity  int         `json:"complexity"`
	CallSites   []string    `json:"callSites,omitempty"`
}

// ClassDetail holds class-specific fields.
type ClassDetail struct {
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
	Methods    []string `json:"methods,omitempty"`
	Properties []string `json:"properties,omitempty"`
	IsAbstract bool     `json:"isAbstract"`
}

// InterfaceDetail holds interface-specific fields.
type InterfaceDetail struct {
	Extends    []string `json:"extends,omitempty"`
	Methods    []string `json:"methods,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// TypeAliasDetail holds type-alias-specific fields.
type TypeAliasDetail struct {
	AliasedType   string `json:"aliasedType"`
	IsUnion       bool   `json:"isUnion"`
	IsIntersection bool  `json:"isIntersection"`
}

// SymbolDetail carries the fields unique to a symbol entity.
type SymbolDetail struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Signature     string     `json:"signature"`
	Visibility    Visibility `json:"visibility"`
	IsExported    bool       `json:"isExported"`
	IsDeprecated  bool       `json:"isDeprecated"`
	DocString     string     `json:"docString,omitempty"`
	Function      *FunctionDetail  `json:"function,omitempty"`
	Class         *ClassDetail     `json:"class,omitempty"`
	Interface     *InterfaceDetail `json:"interface,omitempty"`
	TypeAlias     *TypeAliasDetail `json:"typeAlias,omitempty"`
}

// FileDetail carries the fields unique to a file entity.
type FileDetail struct {
	Extension    string   `json:"extension"`
	Size         int64    `json:"size"`
	LineCount    int      `json:"lineCount"`
	Language     string   `json:"language"`
	Dependencies []string `json:"dependencies,omitempty"`
	IsTest       bool     `json:"isTest"`
	IsConfig     bool     `json:"isConfig"`
}

// DirectoryDetail carries the fields unique to a directory entity.
type DirectoryDetail struct {
	Depth    int      `json:"depth"`
	Children []string `json:"children,omitempty"`
}

// ModuleDetail carries the fields unique to a module entity.
type ModuleDetail struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	EntryPoint string `json:"entryPoint,omitempty"`
	Manifest   string `json:"manifest,omitempty"`
}

// Entity is the polymorphic node type described in spec §3.
type Entity struct {
	ID        string          `json:"id"`
	Variant   EntityVariant   `json:"variant"`
	Path      string          `json:"path"`
	Hash      string          `json:"hash"`
	File      *FileDetail      `json:"file,omitempty"`
	Directory *DirectoryDetail `json:"directory,omitempty"`
	Module    *ModuleDetail    `json:"module,omitempty"`
	Symbol    *SymbolDetail    `json:"symbol,omitempty"`
}

// FileEntityID derives the stable id of a file entity.
func FileEntityID(fileRelPath string) string {
	return fmt.Sprintf("file:%s", NormalizePath(fileRelPath))
}

// DirectoryEntityID derives the stable id of a directory entity.
func DirectoryEntityID(dirRelPath string) string {
	return fmt.Sprintf("dir:%s", NormalizePath(dirRelPath))
}

// ModuleEntityID derives the stable id of a module entity.
func ModuleEntityID(name string) string {
	return fmt.Sprintf("mod:%s", name)
}

// ShortHash computes the short deterministic hash component used in
// symbol identities, using xxhash for speed over the high-frequency
// per-symbol hashing path (teacher's cache keys use sha256; this path
// runs once per symbol per parse and favors throughput).
func ShortHash(s string) string {
	h := xxhash.Sum64String(s)
	return fmt.Sprintf("%016x", h)[:12]
}

// SymbolEntityID derives the deterministic symbol identity:
// sym:{file}#{name}@{short-hash(signature)}. Same name + signature +
// file always produces the same id (spec §3 Symbol identity).
func SymbolEntityID(fileRelPath, name, signature string) string {
	return fmt.Sprintf("sym:%s#%s@%s", NormalizePath(fileRelPath), name, ShortHash(signature))
}

// ContentHash computes the variant-dependent hash for an entity's
// Hash field, which must depend only on variant content (spec §3
// Entity invariants).
func ContentHash(content string) string {
	h := xxhash.Sum64String(content)
	return fmt.Sprintf("%016x", h)
}
