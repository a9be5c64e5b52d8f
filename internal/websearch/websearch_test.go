// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meshintel/techscout/internal/httputil"
	"github.com/meshintel/techscout/pkg/types"
)

const sampleXML = `<?xml version="1.0" encoding="utf-8"?>
<yandexsearch>
  <response>
    <results>
      <grouping>
        <group>
          <doc>
            <title>Дегидрирование этилбензола</title>
            <url>https://journal.example.ru/articles/123</url>
            <passages>
              <passage>Процесс <hlword>дегидрирования</hlword> этилбензола на Fe-K катализаторах &amp; промоторах.</passage>
              <passage>Добавка <hlword>палладия</hlword> повышает стабильность.</passage>
            </passages>
          </doc>
        </group>
        <group>
          <doc>
            <title>Другое</title>
            <url>https://other.example.com/p</url>
            <passages>
              <passage>Кинетика реакции в промышленном реакторе.</passage>
            </passages>
          </doc>
        </group>
      </grouping>
    </results>
  </response>
</yandexsearch>`

func rawDataBody(xmlPayload string) string {
	b, _ := json.Marshal(map[string]string{
		"rawData": base64.StdEncoding.EncodeToString([]byte(xmlPayload)),
	})
	return string(b)
}

// withEndpoint points DefaultEndpoint at a test server for one test.
func withEndpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	orig := DefaultEndpoint
	DefaultEndpoint = ts.URL
	t.Cleanup(func() {
		DefaultEndpoint = orig
		ts.Close()
	})
	return ts
}

func testConfig() types.WebSearchConfig {
	return types.WebSearchConfig{
		APIKey:         "key-123",
		FolderID:       "folder-abc",
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestSearchSnippets_XMLPayload(t *testing.T) {
	ts := withEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Api-Key key-123" {
			t.Errorf("Authorization = %q", got)
		}
		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("request body: %v", err)
		}
		if body.FolderID != "folder-abc" {
			t.Errorf("folderId = %q", body.FolderID)
		}
		fmt.Fprint(w, rawDataBody(sampleXML))
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	snippets, err := c.SearchSnippets(context.Background(), "дегидрирование этилбензола", 10)
	if err != nil {
		t.Fatalf("SearchSnippets: %v", err)
	}
	if len(snippets) != 3 {
		t.Fatalf("got %d snippets, want 3: %+v", len(snippets), snippets)
	}

	first := snippets[0]
	want := "Процесс дегидрирования этилбензола на Fe-K катализаторах & промоторах."
	if first.Text != want {
		t.Errorf("Text = %q, want highlight spans flattened and entities decoded", first.Text)
	}
	if first.SourceURL != "https://journal.example.ru/articles/123" {
		t.Errorf("SourceURL = %q", first.SourceURL)
	}
	if snippets[2].SourceURL != "https://other.example.com/p" {
		t.Errorf("snippets[2].SourceURL = %q", snippets[2].SourceURL)
	}
}

func TestSearchSnippets_NestedRawData(t *testing.T) {
	ts := withEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		b, _ := json.Marshal(map[string]map[string]string{
			"response": {"rawData": base64.StdEncoding.EncodeToString([]byte(sampleXML))},
		})
		w.Write(b)
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	snippets, err := c.SearchSnippets(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want max applied", len(snippets))
	}
}

func TestSearchSnippets_JSONItems(t *testing.T) {
	ts := withEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":{"items":[
			{"title":"A","url":"https://a.example/1","snippet":"Catalyst &amp; promoter study"},
			{"title":"B","url":"https://b.example/2","snippet":""},
			{"title":"C","url":"https://c.example/3","snippet":"Second passage"}
		]}}`)
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	snippets, err := c.SearchSnippets(context.Background(), "catalyst", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want empty snippet dropped", len(snippets))
	}
	if snippets[0].Text != "Catalyst & promoter study" {
		t.Errorf("Text = %q", snippets[0].Text)
	}
}

func TestSearchSnippets_UnrecognizedShapeIsDecodeError(t *testing.T) {
	ts := withEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"something":"else"}`)
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	_, err := c.SearchSnippets(context.Background(), "q", 5)
	if err == nil || !strings.Contains(err.Error(), "unexpected response structure") {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchSnippets_InvalidBase64IsDecodeError(t *testing.T) {
	ts := withEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"rawData":"%%%not-base64%%%"}`)
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	_, err := c.SearchSnippets(context.Background(), "q", 5)
	if err == nil || !strings.Contains(err.Error(), "decoding rawData") {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchSnippets_ClientErrorFailsFastWithBody(t *testing.T) {
	var calls int
	ts := withEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid api key"}`)
	})

	c := New(ts.Client(), testConfig(), zap.NewNop())
	_, err := c.SearchSnippets(context.Background(), "q", 5)

	var se *httputil.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if !strings.Contains(se.Body, "invalid api key") {
		t.Errorf("Body = %q, want diagnostics attached", se.Body)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no retry on 4xx", calls)
	}
}

// flakyTransport fails with a connection error n times, then delegates.
type flakyTransport struct {
	failures int
	calls    int
	response string
}

func (f *flakyTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(f.response)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func TestSearchSnippets_RetriesConnectionFailures(t *testing.T) {
	tr := &flakyTransport{failures: 2, response: rawDataBody(sampleXML)}
	c := New(&http.Client{Transport: tr}, testConfig(), zap.NewNop())

	snippets, err := c.SearchSnippets(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("SearchSnippets: %v", err)
	}
	if tr.calls != 3 {
		t.Errorf("calls = %d, want 2 failures + 1 success", tr.calls)
	}
	if len(snippets) == 0 {
		t.Error("no snippets after retry success")
	}
}

func TestSearchSnippets_ExhaustedRetriesReturnLastError(t *testing.T) {
	tr := &flakyTransport{failures: 99}
	c := New(&http.Client{Transport: tr}, testConfig(), zap.NewNop())

	_, err := c.SearchSnippets(context.Background(), "q", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if tr.calls != 3 {
		t.Errorf("calls = %d, want MaxRetries attempts", tr.calls)
	}
}

func TestTruncateQuery(t *testing.T) {
	long := strings.Repeat("q", 1000)
	got := TruncateQuery(long, 0)
	if len(got) != 400 {
		t.Errorf("len = %d, want 400", len(got))
	}
	if got != long[:400] {
		t.Error("truncated query differs from prefix of input")
	}

	cyrillic := strings.Repeat("я", 500)
	got = TruncateQuery(cyrillic, 400)
	if n := len([]rune(got)); n != 400 {
		t.Errorf("rune len = %d, want 400", n)
	}
	if got != string([]rune(cyrillic)[:400]) {
		t.Error("cyrillic truncation differs from rune prefix")
	}

	short := "короткий запрос"
	if got := TruncateQuery(short, 400); got != short {
		t.Errorf("short query modified: %q", got)
	}
}

func TestFilterByDomain(t *testing.T) {
	snippets := []types.SearchSnippet{
		{Text: "a", SourceURL: "https://www.eda.ru/recipe/1"},
		{Text: "b", SourceURL: "https://other.org/x"},
		{Text: "c", SourceURL: "https://eda.ru/recipe/2"},
	}

	c := New(nil, types.WebSearchConfig{AllowedDomains: []string{"eda.ru"}}, nil)
	got := c.filterByDomain(snippets)
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}

	// No domain matches: the unfiltered list stands rather than an
	// empty result.
	c = New(nil, types.WebSearchConfig{AllowedDomains: []string{"nowhere.example"}}, nil)
	got = c.filterByDomain(snippets)
	if len(got) != len(snippets) {
		t.Fatalf("got %d, want fallback to unfiltered", len(got))
	}

	// Empty allow-list: untouched.
	c = New(nil, types.WebSearchConfig{}, nil)
	if got := c.filterByDomain(snippets); len(got) != len(snippets) {
		t.Fatal("empty allow-list must not filter")
	}
}
