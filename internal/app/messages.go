package app

// Results of workflow effects arrive as workflow.Event values, which are
// tea.Msg themselves. The messages below belong to the UI only.

// ClearNoticeMsg dismisses the workflow notice with Seq after its timeout.
type ClearNoticeMsg struct {
	Seq uint64
}

// ClearHintMsg clears a rejected-action hint after a timeout.
type ClearHintMsg struct {
	Seq uint64
}

// HistoryRecordedMsg reports the outcome of writing the import ledger.
type HistoryRecordedMsg struct {
	ID  int64
	Err error
}
