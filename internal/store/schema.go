package store

// CurrentSchemaVersion is the schema version this build understands.
// Bump it and append a migration when the schema changes; migrations run
// in order and must be idempotent (re-checking column/table existence
// before applying each step).
//
// Schema versions:
// v1: knowledge-graph entities (learnings, patterns, mistakes, code areas,
//     files, topics, doc sections, code docs) + relationships
// v2: code-graph entities, relationships, per-file parse metadata
// v3: checkpoint entities (workflows, milestones, session metrics)
// v4: doc_index content-hash table
const CurrentSchemaVersion = 4

type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS learnings (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				source_issue TEXT,
				code_area TEXT,
				file_path TEXT,
				confidence REAL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				embedding BLOB,
				embedding_dim INTEGER,
				embedding_model TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS patterns (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				code_area TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				embedding BLOB,
				embedding_dim INTEGER,
				embedding_model TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS mistakes (
				id TEXT PRIMARY KEY,
				description TEXT NOT NULL,
				how_fixed TEXT,
				file_path TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				embedding BLOB,
				embedding_dim INTEGER,
				embedding_model TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS code_areas (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS knowledge_files (
				id TEXT PRIMARY KEY,
				path TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS topics (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS doc_sections (
				id TEXT PRIMARY KEY,
				heading TEXT,
				content TEXT NOT NULL,
				file_path TEXT NOT NULL,
				location TEXT,
				start_line INTEGER,
				spec_version TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				embedding BLOB,
				embedding_dim INTEGER,
				embedding_model TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS code_docs (
				id TEXT PRIMARY KEY,
				entity_id TEXT NOT NULL,
				content TEXT NOT NULL,
				description TEXT,
				tags TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				embedding BLOB,
				embedding_dim INTEGER,
				embedding_model TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS knowledge_relationships (
				from_id TEXT NOT NULL,
				to_id TEXT NOT NULL,
				type TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (from_id, to_id, type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_learnings_code_area ON learnings(code_area)`,
			`CREATE INDEX IF NOT EXISTS idx_learnings_file_path ON learnings(file_path)`,
			`CREATE INDEX IF NOT EXISTS idx_knowledge_rel_from ON knowledge_relationships(from_id)`,
			`CREATE INDEX IF NOT EXISTS idx_knowledge_rel_to ON knowledge_relationships(to_id)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS code_entities (
				id TEXT PRIMARY KEY,
				package TEXT NOT NULL,
				file_path TEXT NOT NULL,
				kind TEXT NOT NULL,
				name TEXT NOT NULL,
				line INTEGER,
				exported INTEGER NOT NULL DEFAULT 0,
				metadata TEXT,
				jsdoc TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS code_relationships (
				from_id TEXT NOT NULL,
				to_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				metadata TEXT,
				PRIMARY KEY (from_id, to_id, kind)
			)`,
			`CREATE TABLE IF NOT EXISTS code_file_meta (
				package TEXT NOT NULL,
				file_path TEXT NOT NULL,
				mtime_ms INTEGER NOT NULL,
				last_parsed_at DATETIME,
				entity_count INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (package, file_path)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_code_entities_file ON code_entities(package, file_path)`,
			`CREATE INDEX IF NOT EXISTS idx_code_entities_name ON code_entities(name)`,
			`CREATE INDEX IF NOT EXISTS idx_code_entities_kind ON code_entities(kind)`,
			`CREATE INDEX IF NOT EXISTS idx_code_rel_from ON code_relationships(from_id)`,
			`CREATE INDEX IF NOT EXISTS idx_code_rel_to ON code_relationships(to_id)`,
		},
	},
	{
		version: 3,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				issue_number INTEGER,
				branch TEXT,
				worktree TEXT,
				phase TEXT NOT NULL,
				status TEXT NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS workflow_actions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workflow_id TEXT NOT NULL,
				action TEXT NOT NULL,
				result TEXT NOT NULL,
				metadata TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS workflow_commits (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workflow_id TEXT NOT NULL,
				sha TEXT NOT NULL,
				message TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS milestones (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				github_number INTEGER,
				phase TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS milestone_baselines (
				milestone_id TEXT PRIMARY KEY,
				lint_exit INTEGER,
				lint_warn INTEGER,
				lint_err INTEGER,
				tc_exit INTEGER,
				tc_err INTEGER,
				captured_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS milestone_workflows (
				milestone_id TEXT NOT NULL,
				workflow_id TEXT NOT NULL,
				wave INTEGER,
				PRIMARY KEY (milestone_id, workflow_id)
			)`,
			`CREATE TABLE IF NOT EXISTS session_metrics (
				session_id TEXT PRIMARY KEY,
				issue_number INTEGER,
				files_read INTEGER,
				compacted INTEGER NOT NULL DEFAULT 0,
				duration_minutes REAL,
				review_findings INTEGER,
				learnings_injected INTEGER,
				learnings_captured INTEGER,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_workflow_actions_wf ON workflow_actions(workflow_id)`,
			`CREATE INDEX IF NOT EXISTS idx_workflow_commits_wf ON workflow_commits(workflow_id)`,
			`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status)`,
		},
	},
	{
		version: 4,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS doc_index (
				file_path TEXT PRIMARY KEY,
				content_hash TEXT NOT NULL,
				indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
}
