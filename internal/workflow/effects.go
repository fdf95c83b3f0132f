package workflow

import (
	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/geometry"
)

// Effect is work the machine asks its host to perform. Each effect's result
// is fed back as an Event.
type Effect interface{ effect() }

// UploadFile uploads the statement. Answer: UploadSucceeded or UploadFailed.
type UploadFile struct {
	Path      string
	AccountID string
}

// ParseStatement runs the automatic parse. Answer: ParseSucceeded or
// ParseFailed.
type ParseStatement struct {
	SessionID string
	Request   api.ParseRequest
}

// ExtractRegion extracts a drawn region. Answer: ExtractSucceeded or
// ExtractFailed, carrying Request.PageNumber and Request.BoundingBox.
type ExtractRegion struct {
	SessionID string
	Request   api.ExtractTableRequest
}

// Box is the requested region.
func (e ExtractRegion) Box() geometry.BoundingBox { return e.Request.BoundingBox }

// FetchPage loads a page image. Answer: PageLoaded or PageFailed with Seq.
type FetchPage struct {
	SessionID string
	Page      int
	Scale     float64
	Seq       uint64
}

// CheckDuplicates runs the reconciler. Answer: DuplicatesChecked or
// DuplicateCheckFailed.
type CheckDuplicates struct {
	SessionID string
	Expected  int
}

// SaveTransactions commits the selection. Answer: SaveSucceeded or SaveFailed.
type SaveTransactions struct {
	SessionID string
	Request   api.SaveRequest
}

// Complete hands a finished import to whoever owns post-import handling.
// It has no answer.
type Complete struct {
	SessionID string
	FileName  string
	Submitted int
	Result    api.SaveResponse
}

func (UploadFile) effect()       {}
func (ParseStatement) effect()   {}
func (ExtractRegion) effect()    {}
func (FetchPage) effect()        {}
func (CheckDuplicates) effect()  {}
func (SaveTransactions) effect() {}
func (Complete) effect()         {}
