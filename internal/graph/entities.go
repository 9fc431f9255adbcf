package graph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// emitFileEntities runs the entity pass over one file: it adds the file
// entity itself, then walks top-level declarations, adding each to both
// the result and the lookup's local-definition table.
func (p *Parser) emitFileEntities(pkg string, pf *parsedFile, result *ParseResult, lookup *definitionLookup) {
	lookup.registerFile(pf.relPath)
	lookup.fileSeen[pf.relPath] = true

	fileID := fileEntityID(pkg, pf.relPath)
	result.addEntity(Entity{
		ID:       fileID,
		Package:  pkg,
		FilePath: pf.relPath,
		Kind:     KindFile,
		Name:     pf.relPath,
	})

	w := &entityWalker{pkg: pkg, pf: pf, result: result, lookup: lookup}
	w.walk(pf.tree.RootNode(), "")
}

// collectLookupOnly runs the same walk as emitFileEntities but only feeds
// the lookup tables. Used for context files that participate in cross-file
// resolution during an incremental reparse but should not themselves be
// re-emitted into the result.
func (p *Parser) collectLookupOnly(pkg string, pf *parsedFile, lookup *definitionLookup) {
	lookup.registerFile(pf.relPath)
	discard := newParseResult()
	w := &entityWalker{pkg: pkg, pf: pf, result: discard, lookup: lookup}
	w.walk(pf.tree.RootNode(), "")
}

type entityWalker struct {
	pkg    string
	pf     *parsedFile
	result *ParseResult
	lookup *definitionLookup
}

func (w *entityWalker) text(n *sitter.Node) string {
	return string(w.pf.content[n.StartByte():n.EndByte()])
}

func (w *entityWalker) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func hasExportParent(n *sitter.Node) bool {
	parent := n.Parent()
	return parent != nil && parent.Type() == "export_statement"
}

// jsdocFor returns the JSDoc comment text immediately preceding n, if any.
func (w *entityWalker) jsdocFor(n *sitter.Node) string {
	target := n
	if parent := n.Parent(); parent != nil && parent.Type() == "export_statement" {
		target = parent
	}
	prev := target.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	text := w.text(prev)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return text
}

func (w *entityWalker) walk(node *sitter.Node, parentClassID string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration":
			w.emitClass(child)
		case "interface_declaration":
			w.emitInterface(child)
		case "type_alias_declaration":
			w.emitTypeAlias(child)
		case "enum_declaration":
			w.emitEnum(child)
		case "function_declaration":
			w.emitFunction(child, "")
		case "lexical_declaration", "variable_declaration":
			w.emitVarDecl(child)
		case "export_statement":
			w.walk(child, parentClassID)
		default:
			w.walk(child, parentClassID)
		}
	}
}

func (w *entityWalker) emitClass(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindClass, name)

	meta := map[string]any{}
	if heritage := findChildType(node, "class_heritage"); heritage != nil {
		if ext := extendsTargetName(heritage, w.pf.content); ext != "" {
			meta["extends"] = ext
		}
		meta["implements"] = implementsTargetNames(heritage, w.pf.content)
	}

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindClass,
		Name:     name,
		Line:     w.line(node),
		Exported: hasExportParent(node),
		Metadata: meta,
		JSDoc:    w.jsdocFor(node),
	})
	w.lookup.addLocalDef(w.pf.relPath, name, id)

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member.Type() == "method_definition" {
				w.emitMethod(member, id, name)
			}
		}
	}
}

func (w *entityWalker) emitMethod(node *sitter.Node, classID, className string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindFunction, className+"."+name)

	meta := map[string]any{
		"isMethod": true,
		"async":    hasChildType(node, "async"),
		"static":   hasChildType(node, "static"),
	}

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindFunction,
		Name:     className + "." + name,
		Line:     w.line(node),
		Exported: false,
		Metadata: meta,
		JSDoc:    w.jsdocFor(node),
	})
	w.lookup.addClassMethod(classID, name, id)
}

func (w *entityWalker) emitInterface(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindInterface, name)

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindInterface,
		Name:     name,
		Line:     w.line(node),
		Exported: hasExportParent(node),
		JSDoc:    w.jsdocFor(node),
	})
	w.lookup.addLocalDef(w.pf.relPath, name, id)
}

func (w *entityWalker) emitTypeAlias(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindType, name)

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindType,
		Name:     name,
		Line:     w.line(node),
		Exported: hasExportParent(node),
		JSDoc:    w.jsdocFor(node),
	})
	w.lookup.addLocalDef(w.pf.relPath, name, id)
}

func (w *entityWalker) emitEnum(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindEnum, name)

	var members []string
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			if member.Type() == "property_identifier" || member.Type() == "enum_assignment" {
				members = append(members, w.text(member))
			}
		}
	}

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindEnum,
		Name:     name,
		Line:     w.line(node),
		Exported: hasExportParent(node),
		Metadata: map[string]any{
			"const":   hasChildType(node, "const"),
			"members": members,
		},
		JSDoc: w.jsdocFor(node),
	})
	w.lookup.addLocalDef(w.pf.relPath, name, id)
}

func (w *entityWalker) emitFunction(node *sitter.Node, parentName string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	id := entityID(w.pkg, w.pf.relPath, KindFunction, name)

	w.result.addEntity(Entity{
		ID:       id,
		Package:  w.pkg,
		FilePath: w.pf.relPath,
		Kind:     KindFunction,
		Name:     name,
		Line:     w.line(node),
		Exported: hasExportParent(node),
		Metadata: functionMetadata(node, w),
		JSDoc:    w.jsdocFor(node),
	})
	w.lookup.addLocalDef(w.pf.relPath, name, id)
}

func (w *entityWalker) emitVarDecl(node *sitter.Node) {
	exported := hasExportParent(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		valueNode := decl.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		name := w.text(nameNode)

		switch valueNode.Type() {
		case "arrow_function", "function", "function_expression":
			id := entityID(w.pkg, w.pf.relPath, KindFunction, name)
			meta := functionMetadata(valueNode, w)
			meta["arrow"] = valueNode.Type() == "arrow_function"
			w.result.addEntity(Entity{
				ID:       id,
				Package:  w.pkg,
				FilePath: w.pf.relPath,
				Kind:     KindFunction,
				Name:     name,
				Line:     w.line(node),
				Exported: exported,
				Metadata: meta,
				JSDoc:    w.jsdocFor(node),
			})
			w.lookup.addLocalDef(w.pf.relPath, name, id)
		default:
			id := entityID(w.pkg, w.pf.relPath, KindVariable, name)
			w.result.addEntity(Entity{
				ID:       id,
				Package:  w.pkg,
				FilePath: w.pf.relPath,
				Kind:     KindVariable,
				Name:     name,
				Line:     w.line(node),
				Exported: exported,
			})
			w.lookup.addLocalDef(w.pf.relPath, name, id)
		}
	}
}

func functionMetadata(node *sitter.Node, w *entityWalker) map[string]any {
	meta := map[string]any{
		"async":     hasChildType(node, "async"),
		"generator": hasChildType(node, "*"),
	}
	var params []string
	if p := node.ChildByFieldName("parameters"); p != nil {
		for i := 0; i < int(p.NamedChildCount()); i++ {
			param := p.NamedChild(i)
			if n := param.ChildByFieldName("pattern"); n != nil {
				params = append(params, w.text(n))
			} else {
				params = append(params, w.text(param))
			}
		}
	}
	meta["params"] = params
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		meta["returnType"] = strings.TrimPrefix(w.text(rt), ":")
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		meta["typeParameters"] = w.text(tp)
	}
	return meta
}

func findChildType(node *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == kind {
			return c
		}
	}
	return nil
}

func hasChildType(node *sitter.Node, kind string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(i); c != nil && c.Type() == kind {
			return true
		}
	}
	return false
}

func extendsTargetName(heritage *sitter.Node, content []byte) string {
	if ext := findChildType(heritage, "extends_clause"); ext != nil {
		if v := ext.ChildByFieldName("value"); v != nil {
			return firstIdentifierText(v, content)
		}
	}
	return ""
}

func implementsTargetNames(heritage *sitter.Node, content []byte) []string {
	var names []string
	if impl := findChildType(heritage, "implements_clause"); impl != nil {
		for i := 0; i < int(impl.NamedChildCount()); i++ {
			names = append(names, firstIdentifierText(impl.NamedChild(i), content))
		}
	}
	return names
}

func firstIdentifierText(n *sitter.Node, content []byte) string {
	if n.Type() == "identifier" || n.Type() == "type_identifier" {
		return string(content[n.StartByte():n.EndByte()])
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := firstIdentifierText(n.NamedChild(i), content); c != "" {
			return c
		}
	}
	return ""
}
