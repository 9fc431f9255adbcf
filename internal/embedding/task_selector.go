package embedding

// ContentType tags what kind of text is being embedded so backends with
// per-request task tuning (GenAI) can pick a task type matched to how the
// vector will be used. The engine's call sites produce exactly four:
// knowledge atoms and doc sections on ingestion, JSDoc blocks for code
// docs, and free-text search queries.
type ContentType string

const (
	ContentTypeCode          ContentType = "code"
	ContentTypeDocumentation ContentType = "documentation"
	ContentTypeKnowledgeAtom ContentType = "knowledge_atom"
	ContentTypeQuery         ContentType = "query"
)

// SelectTaskType maps a content type and its query/document side onto the
// GenAI task-type vocabulary. Retrieval pairs split by side: documents are
// indexed as RETRIEVAL_DOCUMENT and searched with RETRIEVAL_QUERY (or
// CODE_RETRIEVAL_QUERY for code). Knowledge atoms are embedded with
// SEMANTIC_SIMILARITY on either side, which is also the fallback for
// anything unrecognized; a ContentTypeQuery is always RETRIEVAL_QUERY.
func SelectTaskType(contentType ContentType, isQuery bool) string {
	switch contentType {
	case ContentTypeCode:
		if isQuery {
			return "CODE_RETRIEVAL_QUERY"
		}
		return "RETRIEVAL_DOCUMENT"

	case ContentTypeDocumentation:
		if isQuery {
			return "RETRIEVAL_QUERY"
		}
		return "RETRIEVAL_DOCUMENT"

	case ContentTypeQuery:
		return "RETRIEVAL_QUERY"

	default:
		return "SEMANTIC_SIMILARITY"
	}
}
