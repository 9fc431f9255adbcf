package graph

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// emitFileRelationships runs the relationship pass over one file: it
// re-walks the same tree from the entity pass, resolving imports, calls,
// and class heritage against the lookup built across all files in this
// parse run.
func (p *Parser) emitFileRelationships(pkg string, pf *parsedFile, result *ParseResult, lookup *definitionLookup) {
	fileID := fileEntityID(pkg, pf.relPath)
	r := &relationshipWalker{pkg: pkg, pf: pf, fileID: fileID, result: result, lookup: lookup}
	r.walk(pf.tree.RootNode(), "")
}

type relationshipWalker struct {
	pkg    string
	pf     *parsedFile
	fileID string
	result *ParseResult
	lookup *definitionLookup
}

func (r *relationshipWalker) text(n *sitter.Node) string {
	return string(r.pf.content[n.StartByte():n.EndByte()])
}

// walk visits every node, tracking the enclosing class id (classID) so
// `this.foo()` calls inside methods can resolve.
func (r *relationshipWalker) walk(node *sitter.Node, classID string) {
	switch node.Type() {
	case "class_declaration":
		r.emitClassHeritage(node)
		name := ""
		if n := node.ChildByFieldName("name"); n != nil {
			name = r.text(n)
		}
		childClassID := entityID(r.pkg, r.pf.relPath, KindClass, name)
		if body := node.ChildByFieldName("body"); body != nil {
			r.walk(body, childClassID)
		}
		return

	case "import_statement":
		r.emitImport(node)

	case "export_statement":
		r.emitReExport(node)

	case "call_expression":
		r.emitCall(node, classID)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		r.walk(node.NamedChild(i), classID)
	}
}

func (r *relationshipWalker) emitClassHeritage(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	classID := entityID(r.pkg, r.pf.relPath, KindClass, r.text(nameNode))

	heritage := findChildType(node, "class_heritage")
	if heritage == nil {
		return
	}
	if extName := extendsTargetName(heritage, r.pf.content); extName != "" {
		if targetID, ok := r.lookup.resolveCall(r.pf.relPath, extName); ok {
			r.result.addRelationship(Relationship{FromID: classID, ToID: targetID, Kind: RelExtends})
		}
	}
	for _, implName := range implementsTargetNames(heritage, r.pf.content) {
		if targetID, ok := r.lookup.resolveCall(r.pf.relPath, implName); ok {
			r.result.addRelationship(Relationship{FromID: classID, ToID: targetID, Kind: RelImplements})
		}
	}
}

// emitImport handles `import { A, B as C } from './mod'` and
// `import D from './mod'`, registering each bound local name and emitting
// an imports edge from the file to the resolved target.
func (r *relationshipWalker) emitImport(node *sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	specifier := trimQuotes(r.text(sourceNode))
	ref := r.lookup.resolveImportTarget(r.pf.relPath, specifier)

	targetID := ref.external
	if ref.resolvedFileRelPath != "" {
		targetID = fileEntityID(r.pkg, ref.resolvedFileRelPath)
	}
	r.result.addRelationship(Relationship{FromID: r.fileID, ToID: targetID, Kind: RelImports})

	clause := findChildType(node, "import_clause")
	if clause == nil {
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			r.lookup.addImport(r.pf.relPath, r.text(c), ref)
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				localName := ""
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					localName = r.text(alias)
				} else if name := spec.ChildByFieldName("name"); name != nil {
					localName = r.text(name)
				}
				if localName != "" {
					r.lookup.addImport(r.pf.relPath, localName, ref)
				}
			}
		case "namespace_import":
			r.lookup.addImport(r.pf.relPath, r.text(c), ref)
		}
	}
}

// emitReExport handles `export { X } from './mod'`, producing an exports
// edge from the re-exporting file to the resolved entity.
func (r *relationshipWalker) emitReExport(node *sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}
	specifier := trimQuotes(r.text(sourceNode))
	ref := r.lookup.resolveImportTarget(r.pf.relPath, specifier)
	if ref.resolvedFileRelPath == "" {
		return
	}

	clause := findChildType(node, "export_clause")
	if clause == nil {
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		name := ""
		if n := spec.ChildByFieldName("name"); n != nil {
			name = r.text(n)
		}
		if name == "" {
			continue
		}
		if defs, ok := r.lookup.localDefs[ref.resolvedFileRelPath]; ok {
			if targetID, ok := defs[name]; ok {
				r.result.addRelationship(Relationship{FromID: r.fileID, ToID: targetID, Kind: RelExports})
			}
		}
	}
}

// emitCall resolves a call expression's callee per the two resolution
// rules: a bare identifier resolves through resolveCall; a
// `this.N(...)` method call resolves through the enclosing class's
// method table, then through the method tables of the classes it extends.
// Anything else (dynamic dispatch, arbitrary member
// expressions) is dropped rather than stored as a synthetic node.
func (r *relationshipWalker) emitCall(node *sitter.Node, classID string) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	callerID := r.enclosingEntityID(node, classID)
	if callerID == "" {
		callerID = r.fileID
	}

	switch fn.Type() {
	case "identifier":
		name := r.text(fn)
		if targetID, ok := r.lookup.resolveCall(r.pf.relPath, name); ok {
			r.result.addRelationship(Relationship{FromID: callerID, ToID: targetID, Kind: RelCalls})
		}

	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return
		}
		if obj.Type() == "this" && classID != "" {
			name := r.text(prop)
			// A method the class does not define itself is looked up along
			// the extends edges already emitted in this parse run.
			for cid, hops := classID, 0; cid != "" && hops < 16; hops++ {
				if targetID, ok := r.lookup.resolveThisMethod(cid, name); ok {
					r.result.addRelationship(Relationship{FromID: callerID, ToID: targetID, Kind: RelCalls})
					break
				}
				parent := ""
				for _, rel := range r.result.Relationships {
					if rel.Kind == RelExtends && rel.FromID == cid {
						parent = rel.ToID
					}
				}
				cid = parent
			}
		}
		// Any other receiver requires type information this parser does
		// not track; the call is dropped rather than guessed.
	}
}

// enclosingEntityID finds the nearest enclosing function/method entity id
// so calls attribute to their containing declaration rather than the file.
func (r *relationshipWalker) enclosingEntityID(node *sitter.Node, classID string) string {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "method_definition":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil && classID != "" {
				if id, ok := r.lookup.resolveThisMethod(classID, r.text(nameNode)); ok {
					return id
				}
			}
		case "function_declaration":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				if id, ok := r.lookup.localDefs[r.pf.relPath][r.text(nameNode)]; ok {
					return id
				}
			}
		case "variable_declarator":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				if id, ok := r.lookup.localDefs[r.pf.relPath][r.text(nameNode)]; ok {
					return id
				}
			}
		}
	}
	return ""
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
