package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/history"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/preflight"
	"github.com/jwulff/stmtimport/internal/reconcile"
	"github.com/jwulff/stmtimport/internal/workflow"
)

// Backend is the statement-upload API. *api.Client implements it.
type Backend interface {
	Upload(ctx context.Context, path, accountID string) (api.UploadResponse, error)
	Parse(ctx context.Context, sessionID string, req api.ParseRequest) (api.ParseResponse, error)
	ExtractTable(ctx context.Context, sessionID string, req api.ExtractTableRequest) (api.ExtractTableResponse, error)
	CheckDuplicates(ctx context.Context, sessionID string) (api.DuplicateCheckResponse, error)
	SaveTransactions(ctx context.Context, sessionID string, req api.SaveRequest) (api.SaveResponse, error)
	PDFPage(ctx context.Context, sessionID string, page int, scale float64) (api.PageImage, error)
}

// Recorder stores completed imports. *history.Store implements it.
type Recorder interface {
	Record(e history.Entry) (int64, error)
}

// effectCmd turns a workflow effect into the command that performs it.
func (m Model) effectCmd(eff workflow.Effect) tea.Cmd {
	switch e := eff.(type) {
	case workflow.UploadFile:
		return uploadCmd(m.ctx, m.backend, e, m.maxUploadBytes, m.log)
	case workflow.ParseStatement:
		return parseCmd(m.ctx, m.backend, e)
	case workflow.ExtractRegion:
		return extractCmd(m.ctx, m.backend, e)
	case workflow.FetchPage:
		return pageCmd(m.ctx, m.backend, e)
	case workflow.CheckDuplicates:
		return checkDuplicatesCmd(m.ctx, m.backend, e)
	case workflow.SaveTransactions:
		return saveCmd(m.ctx, m.backend, e)
	case workflow.Complete:
		return recordCmd(m.recorder, m.historyEntry(e))
	}
	return nil
}

// uploadCmd checks the file locally, then uploads it.
func uploadCmd(ctx context.Context, b Backend, e workflow.UploadFile, maxBytes int64, log zerolog.Logger) tea.Cmd {
	return func() tea.Msg {
		info, err := preflight.Check(e.Path, maxBytes)
		if err != nil {
			return workflow.UploadFailed{Err: err}
		}
		log.Debug().Str("file", info.Name).Str("mime", info.MIME).Int("pages", info.Pages).Msg("preflight passed")
		resp, err := b.Upload(ctx, e.Path, e.AccountID)
		if err != nil {
			return workflow.UploadFailed{Err: err}
		}
		return workflow.UploadSucceeded{Response: resp}
	}
}

func parseCmd(ctx context.Context, b Backend, e workflow.ParseStatement) tea.Cmd {
	return func() tea.Msg {
		resp, err := b.Parse(ctx, e.SessionID, e.Request)
		if err != nil {
			return workflow.ParseFailed{Err: err}
		}
		return workflow.ParseSucceeded{Response: resp}
	}
}

func extractCmd(ctx context.Context, b Backend, e workflow.ExtractRegion) tea.Cmd {
	return func() tea.Msg {
		resp, err := b.ExtractTable(ctx, e.SessionID, e.Request)
		if err != nil {
			return workflow.ExtractFailed{Page: e.Request.PageNumber, Err: err}
		}
		return workflow.ExtractSucceeded{Page: e.Request.PageNumber, Box: e.Box(), Response: resp}
	}
}

func pageCmd(ctx context.Context, b Backend, e workflow.FetchPage) tea.Cmd {
	return func() tea.Msg {
		img, err := b.PDFPage(ctx, e.SessionID, e.Page, e.Scale)
		if err != nil {
			return workflow.PageFailed{Seq: e.Seq, Err: err}
		}
		return workflow.PageLoaded{Seq: e.Seq, Image: img}
	}
}

func checkDuplicatesCmd(ctx context.Context, b Backend, e workflow.CheckDuplicates) tea.Cmd {
	return func() tea.Msg {
		p, err := reconcile.Run(ctx, b, e.SessionID, e.Expected)
		if err != nil {
			return workflow.DuplicateCheckFailed{Err: err}
		}
		return workflow.DuplicatesChecked{Partition: p}
	}
}

func saveCmd(ctx context.Context, b Backend, e workflow.SaveTransactions) tea.Cmd {
	return func() tea.Msg {
		resp, err := b.SaveTransactions(ctx, e.SessionID, e.Request)
		if err != nil {
			return workflow.SaveFailed{Err: err}
		}
		return workflow.SaveSucceeded{Response: resp}
	}
}

// recordCmd writes the finished import to the local ledger.
func recordCmd(r Recorder, entry history.Entry) tea.Cmd {
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		id, err := r.Record(entry)
		return HistoryRecordedMsg{ID: id, Err: err}
	}
}

func (m Model) historyEntry(e workflow.Complete) history.Entry {
	totals := model.Sum(m.machine.SelectedTransactions())
	return history.Entry{
		SessionID:         e.SessionID,
		FileName:          e.FileName,
		Method:            m.machine.Method().String(),
		Submitted:         e.Submitted,
		Created:           e.Result.Created,
		SkippedDuplicates: e.Result.SkippedDuplicates,
		Failed:            e.Result.Failed,
		Debits:            totals.Debits,
		Credits:           totals.Credits,
	}
}

// clearNoticeCmd fires after ttl to clear a transient notice.
func clearNoticeCmd(seq uint64, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return ClearNoticeMsg{Seq: seq}
	})
}

func clearHintCmd(seq uint64, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return ClearHintMsg{Seq: seq}
	})
}

// chooseFileCmd starts the workflow for a file given on the command line.
func chooseFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		return workflow.FileChosen{Path: path}
	}
}
