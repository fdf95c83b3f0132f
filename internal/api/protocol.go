// Package api provides the client and wire types for the statement-upload
// endpoints of the finance backend.
package api

import (
	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/model"
)

// Parse modes accepted by the parse endpoint.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
	ModeHybrid = "hybrid"
)

// UploadResponse is returned by POST /statement-uploads/.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	FileType  string `json:"file_type"`
	PageCount int    `json:"page_count"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// ParseRequest is the body of POST /statement-uploads/{id}/parse/.
type ParseRequest struct {
	Mode    string `json:"mode"`
	AIModel string `json:"ai_model,omitempty"`
}

// ParseResponse is the automatic parse result.
type ParseResponse struct {
	SessionID          string                 `json:"session_id"`
	StatementImportID  string                 `json:"statement_import_id,omitempty"`
	Tables             []model.ExtractedTable `json:"tables"`
	Transactions       []model.Transaction    `json:"transactions"`
	Metadata           map[string]any         `json:"metadata,omitempty"`
	ExtractionMetadata map[string]any         `json:"extraction_metadata,omitempty"`
	TotalTransactions  int                    `json:"total_transactions"`
}

// ExtractTableRequest is the body of POST /statement-uploads/{id}/extract_table/.
type ExtractTableRequest struct {
	PageNumber  int                  `json:"page_number"`
	BoundingBox geometry.BoundingBox `json:"bounding_box"`
	TableType   string               `json:"table_type,omitempty"`
	AIModel     string               `json:"ai_model,omitempty"`
}

// ExtractTableResponse is the result of one manual region extraction.
type ExtractTableResponse struct {
	Table                      model.ExtractedTable `json:"table"`
	Transactions               []model.Transaction  `json:"transactions"`
	TotalTransactionsExtracted int                  `json:"total_transactions_extracted"`
}

// DuplicateCheckResponse is returned by GET /statement-uploads/{id}/check_duplicates/.
type DuplicateCheckResponse struct {
	Duplicates     []model.Transaction `json:"duplicates"`
	Unique         []model.Transaction `json:"unique"`
	Total          int                 `json:"total"`
	DuplicateCount int                 `json:"duplicate_count"`
	UniqueCount    int                 `json:"unique_count"`
}

// SaveRequest is the body of POST /statement-uploads/{id}/save_transactions/.
type SaveRequest struct {
	Transactions   []model.Transaction `json:"transactions"`
	SkipDuplicates bool                `json:"skip_duplicates"`
	AddTag         bool                `json:"add_tag"`
}

// SaveResponse reports per-transaction outcomes of a save.
type SaveResponse struct {
	Success           bool                `json:"success"`
	Created           int                 `json:"created"`
	SkippedDuplicates int                 `json:"skipped_duplicates"`
	Failed            int                 `json:"failed"`
	Transactions      []model.Transaction `json:"transactions,omitempty"`
	SessionID         string              `json:"session_id"`
	Message           string              `json:"message,omitempty"`
}

// PageImage is a rendered page of the uploaded document.
type PageImage struct {
	PageNumber int    `json:"page_number"`
	Image      string `json:"image"` // base64 data URL
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}
