package enrich

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scrape"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Scrape(ctx context.Context, url string) (*scrape.Result, error) {
	args := m.Called(ctx, url)
	res, _ := args.Get(0).(*scrape.Result)
	return res, args.Error(1)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func page() *scrape.Result {
	return &scrape.Result{
		Page: scrape.Page{
			URL:         "https://acme.xyz",
			Title:       "Acme Protocol",
			Description: "Onchain games",
			Text:        "Acme builds play-to-earn games.",
		},
		Source: "local_http",
	}
}

func TestEnrich_Success(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, "https://acme.xyz").Return(page(), nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Phase == "enrich" && req.JSON &&
			strings.Contains(req.Prompt, "Title: Acme Protocol\nDescription: Onchain games\nContent: Acme builds") &&
			strings.Contains(req.Prompt, "Domain: acme.xyz")
	})).Return(`{"companyName": "Acme", "category": "GameFi"}`, nil)

	info := New(f, c).Enrich(context.Background(), "alice@acme.xyz")
	assert.Equal(t, model.CompanyInfo{CompanyName: "Acme", Category: "GameFi"}, info)
	f.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestEnrich_FetchFailureReturnsEmpty(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, "https://down.example").Return(nil, errors.New("dial tcp: no such host"))
	c := &mockCompleter{}

	info := New(f, c).Enrich(context.Background(), "bob@down.example")
	assert.Equal(t, model.CompanyInfo{}, info)
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestEnrich_ModelErrorFallsBackToDomainLabel(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, mock.Anything).Return(page(), nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	info := New(f, c).Enrich(context.Background(), "alice@acme.xyz")
	assert.Equal(t, model.CompanyInfo{CompanyName: "acme"}, info)
}

func TestEnrich_UnparseableReplyFallsBack(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, mock.Anything).Return(page(), nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return("Acme is a gaming company.", nil)

	info := New(f, c).Enrich(context.Background(), "alice@acme.xyz")
	assert.Equal(t, model.CompanyInfo{CompanyName: "acme"}, info)
}

func TestEnrich_NullsStayAbsent(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, mock.Anything).Return(page(), nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return("```json\n{\"companyName\": \"Acme\", \"category\": null}\n```", nil)

	info := New(f, c).Enrich(context.Background(), "alice@acme.xyz")
	assert.Equal(t, model.CompanyInfo{CompanyName: "Acme"}, info)
}

func TestEnrich_TruncatesContent(t *testing.T) {
	long := &scrape.Result{Page: scrape.Page{Text: strings.Repeat("é", 50)}}
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, mock.Anything).Return(long, nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "Content: "+strings.Repeat("é", 10)+"\n")
	})).Return(`{}`, nil)

	info := New(f, c, WithMaxContentChars(10)).Enrich(context.Background(), "a@acme.xyz")
	assert.True(t, info.IsZero())
	c.AssertExpectations(t)
}

func TestEnrich_ProductNameInPrompt(t *testing.T) {
	f := &mockFetcher{}
	f.On("Scrape", mock.Anything, mock.Anything).Return(page(), nil)
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "This is for Kernel,")
	})).Return(`{"companyName":"Acme"}`, nil)

	New(f, c, WithProductName("Kernel")).Enrich(context.Background(), "a@acme.xyz")
	c.AssertExpectations(t)
}

func TestEnrich_CaptchaWidgetPageStillAnalyzed(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Acme Protocol</title></head>` +
			`<body><p>Acme builds onchain games.</p><div class="g-recaptcha"></div></body></html>`))
	}))
	defer srv.Close()

	// Route https://example.com to the test server; its certificate covers example.com.
	tr, ok := srv.Client().Transport.(*http.Transport)
	require.True(t, ok)
	tr = tr.Clone()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, srv.Listener.Addr().String())
	}
	local := scrape.NewLocalScraper(scrape.WithHTTPClient(&http.Client{Transport: tr}))

	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "Title: Acme Protocol") &&
			strings.Contains(req.Prompt, "Acme builds onchain games.")
	})).Return(`{"companyName":"Acme","category":"GameFi"}`, nil)

	info := New(scrape.NewChain(local), c).Enrich(context.Background(), "alice@example.com")
	assert.Equal(t, model.CompanyInfo{CompanyName: "Acme", Category: "GameFi"}, info)
	c.AssertExpectations(t)
}
