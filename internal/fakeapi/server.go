// Package fakeapi is an in-memory implementation of the statement-upload
// endpoints used to exercise the client end to end. It performs no real
// OCR: parse and extraction results come from a Fixture.
package fakeapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/model"
	"github.com/jwulff/stmtimport/internal/selection"
)

// Failure makes an endpoint answer with an error.
type Failure struct {
	Status  int
	Message string
}

// Endpoint names used for failure injection and hit counting.
const (
	EndpointUpload          = "upload"
	EndpointParse           = "parse"
	EndpointExtract         = "extract_table"
	EndpointCheckDuplicates = "check_duplicates"
	EndpointSave            = "save_transactions"
	EndpointPage            = "get_pdf_page"
)

// Fixture scripts what the fake backend returns.
type Fixture struct {
	PageCount  int
	PageWidth  int
	PageHeight int

	Tables       []model.ExtractedTable
	Transactions []model.Transaction

	// Extract returns the table and transactions for a manual extraction.
	// When nil, an empty table is returned.
	Extract func(req api.ExtractTableRequest) (model.ExtractedTable, []model.Transaction)

	// Stored are the account's existing transactions, used for duplicate
	// detection.
	Stored []model.Transaction

	Failures map[string]Failure
}

type uploadSession struct {
	fileName     string
	transactions []model.Transaction
}

// Server is the fake backend.
type Server struct {
	mu       sync.Mutex
	fixture  Fixture
	sessions map[string]*uploadSession
	stored   []model.Transaction
	hits     map[string]int
	saved    []api.SaveRequest
	engine   *gin.Engine
}

// New builds a fake backend serving fixture under /api/statement-uploads/.
func New(fixture Fixture) *Server {
	gin.SetMode(gin.TestMode)
	if fixture.PageCount == 0 {
		fixture.PageCount = 1
	}
	if fixture.PageWidth == 0 {
		fixture.PageWidth = 200
	}
	if fixture.PageHeight == 0 {
		fixture.PageHeight = 280
	}

	s := &Server{
		fixture:  fixture,
		sessions: make(map[string]*uploadSession),
		stored:   append([]model.Transaction(nil), fixture.Stored...),
		hits:     make(map[string]int),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	g := r.Group("/api/statement-uploads")
	{
		g.POST("/", s.upload)
		g.POST("/:id/parse/", s.withSession(EndpointParse, s.parse))
		g.POST("/:id/extract_table/", s.withSession(EndpointExtract, s.extractTable))
		g.GET("/:id/check_duplicates/", s.withSession(EndpointCheckDuplicates, s.checkDuplicates))
		g.POST("/:id/save_transactions/", s.withSession(EndpointSave, s.saveTransactions))
		g.GET("/:id/get_pdf_page/", s.withSession(EndpointPage, s.page))
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hits returns how often endpoint was called.
func (s *Server) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[endpoint]
}

// Saved returns every save request received.
func (s *Server) Saved() []api.SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.SaveRequest(nil), s.saved...)
}

// Store adds txns to the account, as if another import landed them.
func (s *Server) Store(txns ...model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, txns...)
}

// SetFailure makes endpoint fail until cleared with a zero Failure.
func (s *Server) SetFailure(endpoint string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fixture.Failures == nil {
		s.fixture.Failures = make(map[string]Failure)
	}
	if f.Status == 0 {
		delete(s.fixture.Failures, endpoint)
		return
	}
	s.fixture.Failures[endpoint] = f
}

// failed records a hit and writes the injected failure, if any. Must be
// called with s.mu held.
func (s *Server) failed(c *gin.Context, endpoint string) bool {
	s.hits[endpoint]++
	f, ok := s.fixture.Failures[endpoint]
	if !ok {
		return false
	}
	if f.Message == "" {
		c.JSON(f.Status, gin.H{})
	} else {
		c.JSON(f.Status, gin.H{"error": f.Message})
	}
	return true
}

func (s *Server) withSession(endpoint string, h func(*gin.Context, string, *uploadSession)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failed(c, endpoint) {
			return
		}
		id := c.Param("id")
		sess, ok := s.sessions[id]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		h(c, id, sess)
	}
}

var acceptedExt = map[string]string{
	".pdf":  "pdf",
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
}

func (s *Server) upload(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed(c, EndpointUpload) {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"No file was submitted."}})
		return
	}
	kind, ok := acceptedExt[strings.ToLower(filepath.Ext(fh.Filename))]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}

	id := uuid.NewString()
	s.sessions[id] = &uploadSession{fileName: fh.Filename}
	c.JSON(http.StatusCreated, api.UploadResponse{
		SessionID: id,
		FileName:  fh.Filename,
		FileSize:  fh.Size,
		FileType:  kind,
		PageCount: s.fixture.PageCount,
		Status:    "uploaded",
		Message:   "File uploaded successfully",
	})
}

func (s *Server) parse(c *gin.Context, id string, sess *uploadSession) {
	var req api.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Mode {
	case api.ModeAuto, api.ModeManual, api.ModeHybrid:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"mode": []string{fmt.Sprintf("%q is not a valid choice.", req.Mode)}})
		return
	}

	sess.transactions = append([]model.Transaction(nil), s.fixture.Transactions...)
	c.JSON(http.StatusOK, api.ParseResponse{
		SessionID:          id,
		StatementImportID:  "imp-" + id[:8],
		Tables:             s.fixture.Tables,
		Transactions:       sess.transactions,
		Metadata:           map[string]any{"mode": req.Mode},
		ExtractionMetadata: map[string]any{"bank": "Test Bank", "currency": "USD"},
		TotalTransactions:  len(sess.transactions),
	})
}

func (s *Server) extractTable(c *gin.Context, _ string, sess *uploadSession) {
	var req api.ExtractTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PageNumber < 1 || req.PageNumber > s.fixture.PageCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}
	if !req.BoundingBox.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bounding box"})
		return
	}

	table := model.ExtractedTable{}
	var txns []model.Transaction
	if s.fixture.Extract != nil {
		table, txns = s.fixture.Extract(req)
	}
	table.PageNumber = req.PageNumber
	box := req.BoundingBox
	table.BoundingBox = &box
	if table.TableType == "" {
		table.TableType = req.TableType
	}

	sess.transactions = append(sess.transactions, txns...)
	c.JSON(http.StatusOK, api.ExtractTableResponse{
		Table:                      table,
		Transactions:               txns,
		TotalTransactionsExtracted: len(txns),
	})
}

func (s *Server) isStored(t model.Transaction) (model.ExistingRef, bool) {
	fp := selection.Fingerprint(t)
	for i, st := range s.stored {
		if (t.ExternalID != "" && st.ExternalID == t.ExternalID) || selection.Fingerprint(st) == fp {
			return model.ExistingRef{ID: int64(i + 1), Date: st.Date, Description: st.Description, Amount: st.Amount}, true
		}
	}
	return model.ExistingRef{}, false
}

func (s *Server) checkDuplicates(c *gin.Context, _ string, sess *uploadSession) {
	resp := api.DuplicateCheckResponse{
		Duplicates: []model.Transaction{},
		Unique:     []model.Transaction{},
	}
	for _, t := range sess.transactions {
		if ref, ok := s.isStored(t); ok {
			t.Status = model.StatusDuplicate
			t.ExistingTransaction = &ref
			resp.Duplicates = append(resp.Duplicates, t)
		} else {
			t.Status = model.StatusNew
			resp.Unique = append(resp.Unique, t)
		}
	}
	resp.Total = len(sess.transactions)
	resp.DuplicateCount = len(resp.Duplicates)
	resp.UniqueCount = len(resp.Unique)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) saveTransactions(c *gin.Context, id string, _ *uploadSession) {
	var req api.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.saved = append(s.saved, req)

	resp := api.SaveResponse{SessionID: id, Success: true}
	for _, t := range req.Transactions {
		if _, dup := s.isStored(t); dup && req.SkipDuplicates {
			resp.SkippedDuplicates++
			continue
		}
		if err := t.Validate(); err != nil {
			resp.Failed++
			continue
		}
		s.stored = append(s.stored, t)
		resp.Created++
		resp.Transactions = append(resp.Transactions, t)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) page(c *gin.Context, _ string, _ *uploadSession) {
	n, err := strconv.Atoi(c.Query("page_number"))
	if err != nil || n < 1 || n > s.fixture.PageCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}
	scale := 1.0
	if v := c.Query("scale"); v != "" {
		if scale, err = strconv.ParseFloat(v, 64); err != nil || scale <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scale"})
			return
		}
	}
	w := int(float64(s.fixture.PageWidth) * scale)
	h := int(float64(s.fixture.PageHeight) * scale)

	data, err := pagePNG(w, h, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, api.PageImage{
		PageNumber: n,
		Image:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		Width:      w,
		Height:     h,
	})
}

// pagePNG draws a white page with ruled lines, offset by page number so
// pages are distinguishable.
func pagePNG(w, h, page int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if (y+page*3)%20 == 0 && x > w/10 && x < w*9/10 {
				v = 60
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}
