package graph

import (
	"regexp"
	"strings"
)

var scriptBlockPattern = regexp.MustCompile(`(?s)<script[^>]*>(.*?)</script>`)
var templateBlockPattern = regexp.MustCompile(`(?s)<template[^>]*>(.*?)</template>`)
var templateTagPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9-]*)`)

// extractVueScript pulls the contents of the first <script> block out of a
// .vue single-file component so it can be parsed as ordinary TypeScript.
func extractVueScript(content []byte) []byte {
	m := scriptBlockPattern.FindSubmatch(content)
	if m == nil {
		return nil
	}
	return m[1]
}

// emitVueTemplateUsages scans a component's <template> block for child
// component tags and, for each tag that resolves to an imported or
// locally defined entity, emits a calls-kind relationship tagged
// usage=template-component from the file entity to that component.
func emitVueTemplateUsages(pkg string, pf *parsedFile, result *ParseResult, lookup *definitionLookup) {
	m := templateBlockPattern.FindSubmatch(pf.rawContent)
	if m == nil {
		return
	}
	fileID := fileEntityID(pkg, pf.relPath)

	seen := make(map[string]bool)
	for _, tagMatch := range templateTagPattern.FindAllSubmatch(m[1], -1) {
		tag := string(tagMatch[1])
		name := componentNameFromTag(tag)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		targetID, ok := resolveTemplateComponent(pkg, pf.relPath, name, lookup)
		if !ok {
			continue
		}
		result.addRelationship(Relationship{
			FromID:   fileID,
			ToID:     targetID,
			Kind:     RelCalls,
			Metadata: map[string]any{"usage": "template-component"},
		})
	}
}

// resolveTemplateComponent maps a template component name to its target
// entity. A component imported from another SFC usually has no named
// declaration in that file (it is the default export), so the import
// binding resolves to the imported file entity; a locally defined
// component falls back to the ordinary definition lookup.
func resolveTemplateComponent(pkg, fromRelPath, name string, lookup *definitionLookup) (string, bool) {
	if imports, ok := lookup.imports[fromRelPath]; ok {
		if ref, ok := imports[name]; ok {
			if ref.resolvedFileRelPath != "" {
				return fileEntityID(pkg, ref.resolvedFileRelPath), true
			}
			if ref.external != "" {
				return ref.external, true
			}
		}
	}
	return lookup.resolveCall(fromRelPath, name)
}

// componentNameFromTag converts a template tag into the PascalCase name it
// would have been imported under: a kebab-case tag such as my-widget
// becomes MyWidget, and a tag already starting with an uppercase letter is
// returned as is. Returns "" for lowercase tags without a hyphen (native
// HTML elements).
func componentNameFromTag(tag string) string {
	if !strings.Contains(tag, "-") {
		if len(tag) == 0 || tag[0] < 'A' || tag[0] > 'Z' {
			return ""
		}
		return tag
	}
	parts := strings.Split(tag, "-")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
