package graph

import (
	"path/filepath"
)

// definitionLookup accumulates, as files are walked, everything the
// relationship pass needs to resolve a call or import: per-file local
// definitions, per-file import bindings, and per-class method tables (for
// `this.foo()` resolution). Built fresh for every Parser.parseFiles call.
type definitionLookup struct {
	localDefs    map[string]map[string]string // relPath -> name -> entity id
	imports      map[string]map[string]importRef
	classMethods map[string]map[string]string // class entity id -> method name -> entity id
	fileSeen     map[string]bool              // relPath of files processed in the entity pass as targets
	knownFiles   map[string]bool              // every relPath seen across target + context files
}

// importRef describes what a locally-bound import name resolves to.
type importRef struct {
	resolvedFileRelPath string // non-empty for a resolved relative import
	external            string // "external:{specifier}" for a bare import
}

func newDefinitionLookup() *definitionLookup {
	return &definitionLookup{
		localDefs:    make(map[string]map[string]string),
		imports:      make(map[string]map[string]importRef),
		classMethods: make(map[string]map[string]string),
		fileSeen:     make(map[string]bool),
		knownFiles:   make(map[string]bool),
	}
}

func (l *definitionLookup) registerFile(relPath string) {
	l.knownFiles[relPath] = true
}

func (l *definitionLookup) addLocalDef(relPath, name, id string) {
	m, ok := l.localDefs[relPath]
	if !ok {
		m = make(map[string]string)
		l.localDefs[relPath] = m
	}
	m[name] = id
}

func (l *definitionLookup) addImport(relPath, localName string, ref importRef) {
	m, ok := l.imports[relPath]
	if !ok {
		m = make(map[string]importRef)
		l.imports[relPath] = m
	}
	m[localName] = ref
}

func (l *definitionLookup) addClassMethod(classID, name, id string) {
	m, ok := l.classMethods[classID]
	if !ok {
		m = make(map[string]string)
		l.classMethods[classID] = m
	}
	m[name] = id
}

// resolveCall implements the three-step resolution rule for a
// bare identifier N called from file F: local definition, then
// named-import resolved to its defining file, otherwise drop.
func (l *definitionLookup) resolveCall(fromRelPath, name string) (string, bool) {
	if defs, ok := l.localDefs[fromRelPath]; ok {
		if id, ok := defs[name]; ok {
			return id, true
		}
	}
	if imports, ok := l.imports[fromRelPath]; ok {
		if ref, ok := imports[name]; ok {
			if ref.external != "" {
				return ref.external, true
			}
			if defs, ok := l.localDefs[ref.resolvedFileRelPath]; ok {
				if id, ok := defs[name]; ok {
					return id, true
				}
			}
		}
	}
	return "", false
}

// resolveThisMethod resolves `this.N(...)` when the enclosing class is
// known, per the method-call rule: dropped unless the receiver
// unambiguously resolves to a stored entity whose method N is known.
func (l *definitionLookup) resolveThisMethod(classID, name string) (string, bool) {
	methods, ok := l.classMethods[classID]
	if !ok {
		return "", false
	}
	id, ok := methods[name]
	return id, ok
}

// candidateExtensions mirrors module resolution order: an explicit
// extension on the specifier is tried first, then each known source
// extension, then the same list under an /index suffix.
var candidateExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".vue"}

// resolveImportTarget resolves an import specifier string to either a
// relative file path known to this parse run, or an external sentinel
// when the specifier is bare (a package name) or can't be matched.
func (l *definitionLookup) resolveImportTarget(fromRelPath, specifier string) importRef {
	if len(specifier) == 0 || (specifier[0] != '.' && specifier[0] != '/') {
		return importRef{external: "external:" + specifier}
	}

	fromDir := filepath.Dir(fromRelPath)
	joined := filepath.ToSlash(filepath.Join(fromDir, specifier))

	candidates := []string{joined}
	for _, ext := range candidateExtensions {
		candidates = append(candidates, joined+ext)
	}
	for _, ext := range candidateExtensions {
		candidates = append(candidates, joined+"/index"+ext)
	}
	for _, c := range candidates {
		if l.knownFiles[c] {
			return importRef{resolvedFileRelPath: c}
		}
	}
	// Not found among parsed files; treat as an unresolved external
	// reference rather than silently dropping the edge.
	return importRef{external: "external:" + specifier}
}
