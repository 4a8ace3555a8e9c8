package models

import "time"

// TextSegment is one block of text returned by document extraction.
type TextSegment struct {
	PageRange   []int    `json:"page_range"`
	Heading     string   `json:"heading,omitempty"`
	RawMarkdown string   `json:"raw_md"`
	TableBlocks []string `json:"table_blocks"`
}

// Chunk is a size-bounded slice of a segment handed to the LLM.
type Chunk struct {
	Label         string `json:"label,omitempty"`
	Markdown      string `json:"markdown"`
	PageRange     []int  `json:"page_range"`
	SourceHeading string `json:"source_heading,omitempty"`
}

// VersionInfo describes one stored snapshot without its body.
type VersionInfo struct {
	ContractID  string    `json:"contract_id"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	ContentHash string    `json:"content_hash"`
	SourceFile  string    `json:"source_file,omitempty"`
	ClauseCount int       `json:"clause_count"`
}
