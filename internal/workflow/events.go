package workflow

import (
	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/geometry"
	"github.com/jwulff/stmtimport/internal/reconcile"
	"github.com/jwulff/stmtimport/internal/selection"
	"github.com/jwulff/stmtimport/internal/session"
)

// Event is an input to the machine: a user action or a completed call.
type Event interface{ event() }

// MethodChosen picks the processing method before upload.
type MethodChosen struct{ Method session.Method }

// FileChosen starts the upload of the file at Path.
type FileChosen struct{ Path string }

// UploadSucceeded carries the server's upload result.
type UploadSucceeded struct{ Response api.UploadResponse }

// UploadFailed reports a rejected or failed upload.
type UploadFailed struct{ Err error }

// ParseSucceeded carries the automatic parse result.
type ParseSucceeded struct{ Response api.ParseResponse }

// ParseFailed reports a failed automatic parse.
type ParseFailed struct{ Err error }

// DrawingToggled switches region drawing on or off.
type DrawingToggled struct{}

// RegionCaptured is a completed region on the current page.
type RegionCaptured struct{ Box geometry.BoundingBox }

// ExtractSucceeded carries the result of a manual extraction of Box on Page.
type ExtractSucceeded struct {
	Page     int
	Box      geometry.BoundingBox
	Response api.ExtractTableResponse
}

// ExtractFailed reports a failed manual extraction.
type ExtractFailed struct {
	Page int
	Err  error
}

// PageRequested navigates to a page.
type PageRequested struct{ Page int }

// PageLoaded carries a fetched page image for request Seq.
type PageLoaded struct {
	Seq   uint64
	Image api.PageImage
}

// PageFailed reports a failed page fetch for request Seq.
type PageFailed struct {
	Seq uint64
	Err error
}

// ProceedRequested asks to move on to the duplicate check.
type ProceedRequested struct{}

// DuplicatesChecked carries the reconciled partition.
type DuplicatesChecked struct{ Partition reconcile.Partition }

// DuplicateCheckFailed reports a failed duplicate check.
type DuplicateCheckFailed struct{ Err error }

// TransactionToggled flips the selection of one unique transaction.
type TransactionToggled struct{ Key selection.Key }

// AllSelected selects every unique transaction.
type AllSelected struct{}

// SelectionCleared deselects everything.
type SelectionCleared struct{}

// BackToReview leaves the duplicate check for more extraction.
type BackToReview struct{}

// ConfirmRequested saves the selected transactions.
type ConfirmRequested struct{}

// SaveSucceeded carries the save result.
type SaveSucceeded struct{ Response api.SaveResponse }

// SaveFailed reports a failed save.
type SaveFailed struct{ Err error }

// NoticeDismissed clears notice Seq if it is still showing.
type NoticeDismissed struct{ Seq uint64 }

// Aborted abandons the session.
type Aborted struct{}

func (MethodChosen) event()         {}
func (FileChosen) event()           {}
func (UploadSucceeded) event()      {}
func (UploadFailed) event()         {}
func (ParseSucceeded) event()       {}
func (ParseFailed) event()          {}
func (DrawingToggled) event()       {}
func (RegionCaptured) event()       {}
func (ExtractSucceeded) event()     {}
func (ExtractFailed) event()        {}
func (PageRequested) event()        {}
func (PageLoaded) event()           {}
func (PageFailed) event()           {}
func (ProceedRequested) event()     {}
func (DuplicatesChecked) event()    {}
func (DuplicateCheckFailed) event() {}
func (TransactionToggled) event()   {}
func (AllSelected) event()          {}
func (SelectionCleared) event()     {}
func (BackToReview) event()         {}
func (ConfirmRequested) event()     {}
func (SaveSucceeded) event()        {}
func (SaveFailed) event()           {}
func (NoticeDismissed) event()      {}
func (Aborted) event()              {}
