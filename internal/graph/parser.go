package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"claude-knowledge/internal/logging"
)

// Parser walks a TypeScript/JavaScript/Vue project with tree-sitter and
// produces a ParseResult via a two-pass algorithm:
// an entity pass followed by a relationship pass that resolves calls,
// imports, and inheritance against a name-to-definition lookup built
// while walking.
type Parser struct {
	projectRoot string
	tsParser    *sitter.Parser
	jsParser    *sitter.Parser
}

// NewParser returns a Parser rooted at projectRoot, used to compute
// relative paths for entity ids.
func NewParser(projectRoot string) *Parser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())
	return &Parser{projectRoot: projectRoot, tsParser: ts, jsParser: js}
}

// parsedFile holds the AST and source text for one file across both
// passes, so the relationship pass never reparses.
type parsedFile struct {
	path       string
	relPath    string
	tree       *sitter.Tree
	content    []byte
	lines      []string
	isVue      bool
	rawContent []byte // the unmodified .vue source, used for template scanning
}

// Parse runs a full-mode parse: every source file under pkgRoot is parsed
// and contributes entities and relationships.
func (p *Parser) Parse(pkg, pkgRoot string) (*ParseResult, error) {
	files, err := discoverFiles(pkgRoot)
	if err != nil {
		return nil, fmt.Errorf("discover files under %s: %w", pkgRoot, err)
	}
	return p.parseFiles(pkg, files, files)
}

// ParseIncremental parses only changedFiles, but loads contextFiles (the
// rest of the package) into the same project context so cross-file name
// resolution in the relationship pass keeps working.
func (p *Parser) ParseIncremental(pkg string, changedFiles, contextFiles []string) (*ParseResult, error) {
	return p.parseFiles(pkg, changedFiles, contextFiles)
}

func (p *Parser) parseFiles(pkg string, targetFiles, contextFiles []string) (*ParseResult, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "Parser.parseFiles")
	defer timer.Stop()

	result := newParseResult()
	targetSet := make(map[string]bool, len(targetFiles))
	for _, f := range targetFiles {
		targetSet[f] = true
	}

	allSet := make(map[string]bool, len(contextFiles)+len(targetFiles))
	var allFiles []string
	for _, f := range append(append([]string{}, contextFiles...), targetFiles...) {
		if !allSet[f] {
			allSet[f] = true
			allFiles = append(allFiles, f)
		}
	}

	parsedByRel := make(map[string]*parsedFile)
	for _, path := range allFiles {
		pf, err := p.readAndParse(path)
		if err != nil {
			if targetSet[path] {
				result.FilesSkipped = append(result.FilesSkipped, path)
				logging.GraphWarn("parse failed, keeping prior entities for %s: %v", path, err)
			}
			continue
		}
		parsedByRel[pf.relPath] = pf
	}

	// Pass 1: entities, only for target files.
	lookup := newDefinitionLookup()
	for _, path := range targetFiles {
		pf, ok := parsedByRel[relPathOf(p.projectRoot, path)]
		if !ok {
			continue
		}
		p.emitFileEntities(pkg, pf, result, lookup)
		result.FilesParsed++
	}
	// Entities from context-only files still populate the lookup so
	// imports into them resolve, without re-adding them to the result.
	for rel, pf := range parsedByRel {
		if _, isTarget := lookup.fileSeen[rel]; isTarget {
			continue
		}
		p.collectLookupOnly(pkg, pf, lookup)
	}

	// Pass 2: relationships, only for target files (re-walks the same trees).
	for _, path := range targetFiles {
		pf, ok := parsedByRel[relPathOf(p.projectRoot, path)]
		if !ok {
			continue
		}
		p.emitFileRelationships(pkg, pf, result, lookup)
		if pf.isVue {
			emitVueTemplateUsages(pkg, pf, result, lookup)
		}
	}

	for _, pf := range parsedByRel {
		pf.tree.Close()
	}

	return result, nil
}

func relPathOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (p *Parser) readAndParse(path string) (*parsedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := raw
	isVue := strings.EqualFold(filepath.Ext(path), ".vue")
	if isVue {
		content = extractVueScript(raw)
	}

	parser := p.tsParser
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		parser = p.jsParser
	}

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}

	return &parsedFile{
		path:       path,
		relPath:    relPathOf(p.projectRoot, path),
		tree:       tree,
		content:    content,
		lines:      strings.Split(string(content), "\n"),
		isVue:      isVue,
		rawContent: raw,
	}, nil
}

func fileEntityID(pkg, relPath string) string {
	return fmt.Sprintf("%s:file:%s", pkg, relPath)
}

func entityID(pkg, relPath string, kind Kind, name string) string {
	return fmt.Sprintf("%s:%s:%s:%s", pkg, relPath, kind, name)
}
