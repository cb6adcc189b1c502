package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/helpcomp/finsight/analysis"
	"github.com/helpcomp/finsight/chat"
	"github.com/helpcomp/finsight/completion"
	"github.com/helpcomp/finsight/config"
	"github.com/helpcomp/finsight/prom"
	"github.com/helpcomp/finsight/report"
	"github.com/helpcomp/finsight/transactions"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coffeeAnalysis = `{
  "transactions": [
    {"description": "Coffee", "amount": -4.50, "date": "2024-01-01", "category": "Food & Dining"},
    {"description": "Paycheck", "amount": 2000, "date": "2024-01-02", "category": "Income"}
  ],
  "category_totals": {"Food & Dining": -4.50, "Income": 2000},
  "insights": ["Coffee is your only expense", "Income covers spending", "Consider saving more"],
  "total_spending": 4.50
}`

type stubCompleter struct {
	reply string
	err   error
	reqs  []completion.Request
}

func (s *stubCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

type fixture struct {
	server   *Server
	stub     *stubCompleter
	dir      string
	requests *prom.RequestCounter
}

func newFixture(t *testing.T, reply string, err error) *fixture {
	t.Helper()
	return newFixtureWithReports(t, reply, err, nil)
}

// newFixtureWithReports swaps in reports when it is not nil.
func newFixtureWithReports(t *testing.T, reply string, err error, reports Reporter) *fixture {
	t.Helper()

	dir := t.TempDir()
	loader, lerr := transactions.NewLoader(dir)
	require.NoError(t, lerr)

	cfg := config.Default()
	stub := &stubCompleter{reply: reply, err: err}
	requests := prom.NewRequestCounter("finsight")
	if reports == nil {
		reports = report.NewRenderer(cfg.Report.Title)
	}

	return &fixture{
		server: New(Options{
			Loader:   loader,
			Analyzer: analysis.NewAnalyzer(stub, cfg),
			Chat:     chat.NewResponder(stub, cfg),
			Reports:  reports,
			Requests: requests,
		}),
		stub:     stub,
		dir:      dir,
		requests: requests,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func multipartUpload(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestUpload_AnalyzesCSV(t *testing.T) {
	f := newFixture(t, "```json\n"+coffeeAnalysis+"\n```", nil)

	csvData := "description,amount,date\nCoffee,-4.50,2024-01-01\nPaycheck,2000,2024-01-02\n"
	rr := f.do(multipartUpload(t, "file", "statement.csv", csvData))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var rec analysis.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.False(t, rec.Failed())
	assert.Equal(t, "4.5", rec.TotalSpending().String())
	assert.Len(t, rec.Insights(), 3)

	require.Len(t, f.stub.reqs, 1)
	assert.Contains(t, f.stub.reqs[0].Prompt, `"description": "Coffee"`)
	assert.Contains(t, f.stub.reqs[0].Prompt, `"amount": "2000"`)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded file must not outlive the request")

	assert.Equal(t, 1, testutil.CollectAndCount(f.requests))
}

func TestUpload_ThenExportPDF(t *testing.T) {
	reply := "```json\n" + `{
  "categorized_transactions": [
    {"description": "Coffee", "amount": -4.50, "date": "2024-01-01", "category": "Food & Dining"},
    {"description": "Paycheck", "amount": 2000, "date": "2024-01-02", "category": "Income"}
  ],
  "category_totals": {"Food & Dining": -4.50, "Income": 2000},
  "insights": ["Coffee is your only expense"],
  "total_spending": 4.50
}` + "\n```"
	f := newFixtureWithReports(t, reply, nil, &report.Renderer{Title: report.DefaultTitle})

	csvData := "description,amount,date\nCoffee,-4.50,2024-01-01\nPaycheck,2000,2024-01-02\n"
	rr := f.do(multipartUpload(t, "file", "statement.csv", csvData))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec analysis.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	doc := report.Build(report.DefaultTitle, rec)
	table, ok := doc.Table()
	require.True(t, ok)
	assert.Equal(t, [][]string{{"Food & Dining", "4.50"}}, table.Rows)
	assert.Equal(t, []string{"• Coffee is your only expense"}, doc.Bullets())

	pdf := f.postJSON("/export-pdf", `{"analysis":`+rr.Body.String()+`}`)
	require.Equal(t, http.StatusOK, pdf.Code, pdf.Body.String())
	out := pdf.Body.String()
	assert.Contains(t, out, "(Food & Dining)")
	assert.Contains(t, out, "(4.50)")
	assert.NotContains(t, out, "(Income)")
}

func TestUpload_UnparseableReplyIsOK(t *testing.T) {
	f := newFixture(t, "Sorry, I can't do that", nil)

	rr := f.do(multipartUpload(t, "file", "statement.csv", "description,amount\nCoffee,-4.50\n"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"error":"Failed to parse AI response","raw_response":"Sorry, I can't do that"}`,
		rr.Body.String())
	require.Len(t, f.stub.reqs, 1)
}

func TestUpload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		status  int
		message string
	}{
		{
			name:    "no file part",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "", "", "") },
			status:  http.StatusBadRequest,
			message: "No file uploaded",
		},
		{
			name:    "wrong field name",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "document", "a.csv", "a\n1\n") },
			status:  http.StatusBadRequest,
			message: "No file uploaded",
		},
		{
			name:    "empty filename",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "file", "", "a\n1\n") },
			status:  http.StatusBadRequest,
			message: "No file selected",
		},
		{
			name:    "pdf",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "file", "statement.pdf", "%PDF") },
			status:  http.StatusBadRequest,
			message: "Invalid file type",
		},
		{
			name:    "no extension",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "file", "csv", "a\n1\n") },
			status:  http.StatusBadRequest,
			message: "Invalid file type",
		},
		{
			name:    "header only",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "file", "statement.TXT", "a,b\n") },
			status:  http.StatusBadRequest,
			message: "No transactions found in file",
		},
		{
			name:    "empty file",
			req:     func(t *testing.T) *http.Request { return multipartUpload(t, "file", "statement.csv", "") },
			status:  http.StatusBadRequest,
			message: "No transactions found in file",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("hello"))
			},
			status:  http.StatusBadRequest,
			message: "No file uploaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, coffeeAnalysis, nil)
			rr := f.do(tt.req(t))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, errorOf(t, rr))
			assert.Empty(t, f.stub.reqs)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	f := newFixture(t, coffeeAnalysis, nil)

	big := "a\n" + strings.Repeat("1234567890\n", (MaxUploadSize/11)+10)
	rr := f.do(multipartUpload(t, "file", "big.csv", big))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, f.stub.reqs)
}

func TestUpload_UpstreamFailure(t *testing.T) {
	f := newFixture(t, "", errors.New("connection refused"))

	rr := f.do(multipartUpload(t, "file", "s.csv", "description,amount\nCoffee,-4.50\n"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to analyze transactions", errorOf(t, rr))
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestAnalyzeManual(t *testing.T) {
	f := newFixture(t, coffeeAnalysis, nil)

	rr := f.postJSON("/analyze-manual", `{"transactions":[{"description":"Coffee","amount":-4.5,"date":"2024-01-01"}]}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec analysis.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.False(t, rec.Failed())

	require.Len(t, f.stub.reqs, 1)
	assert.Contains(t, f.stub.reqs[0].Prompt, `"amount": "-4.5"`)
}

func TestAnalyzeManual_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty list", `{"transactions":[]}`, "No transactions provided"},
		{"missing key", `{}`, "No transactions provided"},
		{"null", `{"transactions":null}`, "No transactions provided"},
		{"not json", `transactions`, "Invalid request body"},
		{"rows not objects", `{"transactions":[1,2]}`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, coffeeAnalysis, nil)
			rr := f.postJSON("/analyze-manual", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.message, errorOf(t, rr))
			assert.Empty(t, f.stub.reqs)
		})
	}
}

func TestAnalyzeManual_ParseFailureIsOK(t *testing.T) {
	f := newFixture(t, "I cannot help with that.", nil)

	rr := f.postJSON("/analyze-manual", `{"transactions":[{"description":"Coffee"}]}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"error":"Failed to parse AI response","raw_response":"I cannot help with that."}`,
		rr.Body.String())
}

func TestExportPDF(t *testing.T) {
	f := newFixture(t, "", nil)

	rr := f.postJSON("/export-pdf", `{"analysis":`+coffeeAnalysis+`}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, report.ContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=FinSight_Report.pdf", rr.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
	assert.Empty(t, f.stub.reqs)
}

func TestExportPDF_MissingAnalysisUsesDefaults(t *testing.T) {
	for _, body := range []string{`{}`, `{"analysis":null}`, `{"analysis":{}}`} {
		f := newFixture(t, "", nil)
		rr := f.postJSON("/export-pdf", body)

		assert.Equal(t, http.StatusOK, rr.Code, body)
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")), body)
	}
}

func TestExportPDF_InvalidBody(t *testing.T) {
	f := newFixture(t, "", nil)

	rr := f.postJSON("/export-pdf", `{"analysis":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid analysis", errorOf(t, rr))

	rr = f.postJSON("/export-pdf", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rr))
}

func TestChat(t *testing.T) {
	f := newFixture(t, "  You spent $4.50 on coffee.\n", nil)

	rr := f.postJSON("/chat", `{"message":"How much on coffee?","analysis":`+coffeeAnalysis+`}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"reply":"You spent $4.50 on coffee."}`, rr.Body.String())

	require.Len(t, f.stub.reqs, 1)
	req := f.stub.reqs[0]
	assert.Equal(t, float32(0.3), req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Contains(t, req.Prompt, "How much on coffee?")
	assert.Contains(t, req.Prompt, `"Food & Dining"`)
}

func TestChat_EmptyMessage(t *testing.T) {
	for _, body := range []string{`{"message":"   "}`, `{"message":""}`, `{}`} {
		f := newFixture(t, "unused", nil)
		rr := f.postJSON("/chat", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, "Empty message", errorOf(t, rr))
		assert.Empty(t, f.stub.reqs, body)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	f := newFixture(t, "", errors.New("rate limited"))

	rr := f.postJSON("/chat", `{"message":"hi","analysis":{}}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Chat failed", errorOf(t, rr))
}

func TestRoutes_MethodAndLanding(t *testing.T) {
	f := newFixture(t, "", nil)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "FinSight")

	rr = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewLandingPage(t *testing.T) {
	page, err := NewLandingPage("finsight", "Statement analysis", "/metrics")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	page.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "finsight")
	assert.Contains(t, rr.Body.String(), "Metrics")
	assert.Contains(t, rr.Body.String(), "Health")
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	f := newFixture(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := f.do(req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorOf(t, rr))
}
