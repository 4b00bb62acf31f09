package ifb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testUser     = "alice"
	testPassword = "s3cret"
	testToken    = "tok-123"
)

// fakePortal 模拟门户的登录、实例页、存储页与表单提交。
type fakePortal struct {
	noToken   bool
	instances func(listing int) string
	storage   string
	landing   string

	mu       sync.Mutex
	requests int
	listings int
	forms    []url.Values
}

func newFakePortal(t *testing.T) (*fakePortal, *httptest.Server) {
	t.Helper()
	p := &fakePortal{
		instances: func(int) string {
			return instancesTable(
				instanceRow("101", "web", "running", "10.0.0.5"),
				instanceRow("102", "db", "running", "10.0.0.6"),
			)
		},
		storage: disksTable([]string{"scratch", "100GB", "uuid-1", "data", "50GB", "uuid-2"}),
		landing: applianceSelect(Appliance{ID: 215, Name: "Galaxy"}, Appliance{ID: 12, Name: "Ubuntu 16.04"}),
	}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++

	switch {
	case r.URL.Path == "/accounts/login" && r.Method == http.MethodGet:
		if !p.noToken {
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: testToken, Path: "/"})
		}
		fmt.Fprint(w, page(`<form method="post"><input name="username"></form>`))
	case r.URL.Path == "/accounts/login" && r.Method == http.MethodPost:
		if !p.validToken(r) {
			http.Error(w, "csrf", http.StatusForbidden)
			return
		}
		if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
			fmt.Fprint(w, page(`<p>Please enter a correct username and password.</p>`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "sess", Path: "/"})
		http.Redirect(w, r, r.PostForm.Get("next"), http.StatusFound)
	case r.URL.Path == "/cloud/instance" && r.Method == http.MethodGet:
		if !p.loggedIn(r) {
			http.Redirect(w, r, "/accounts/login", http.StatusFound)
			return
		}
		p.listings++
		fmt.Fprint(w, page(p.instances(p.listings)+p.landing))
	case r.URL.Path == "/cloud/storage" && r.Method == http.MethodGet:
		if !p.loggedIn(r) {
			http.Redirect(w, r, "/accounts/login", http.StatusFound)
			return
		}
		fmt.Fprint(w, page(p.storage))
	case r.URL.Path == "/cloud/instance/" && r.Method == http.MethodPost:
		if !p.loggedIn(r) || !p.validToken(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		p.forms = append(p.forms, r.PostForm)
		fmt.Fprint(w, page("ok"))
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePortal) validToken(r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		return false
	}
	c, err := r.Cookie("csrftoken")
	return err == nil && c.Value == testToken && r.PostForm.Get("csrfmiddlewaretoken") == testToken
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("sessionid")
	return err == nil && c.Value == "sess"
}

func (p *fakePortal) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests, p.listings, p.forms = 0, 0, nil
}

func (p *fakePortal) counts() (requests, listings int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests, p.listings
}

func (p *fakePortal) submitted() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.forms...)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{
		Session: SessionConfig{BaseURL: srv.URL, HTTPClient: srv.Client()},
		Sleep:   noSleep,
	}, Credentials{Username: testUser, Password: testPassword})
	require.NoError(t, err)
	return c
}

func page(body string) string {
	return "<!DOCTYPE html><html><head><title>IFB</title></head><body>" + body + "</body></html>"
}

func cells(tag string, tokens []string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, tok := range tokens {
		b.WriteString("<" + tag + ">" + tok + "</" + tag + ">")
	}
	b.WriteString("</tr>")
	return b.String()
}

// headerTokens 实例表表头，下标 0..HeaderSkip 全部被跳过。
func headerTokens() []string {
	out := make([]string, 0, 13)
	for i := 0; i <= DefaultLayout().Instances.HeaderSkip; i++ {
		out = append(out, fmt.Sprintf("h%d", i))
	}
	return out
}

// instanceRow 生成一条 27 个文本片段的实例记录，ip 为空时省略元数据块。
func instanceRow(id, name, status, ip string) []string {
	row := []string{id, name, status, "Galaxy", "3%", "2", "4GB", "1", "100GB"}
	if ip == "" {
		return row
	}
	row = append(row, "meta-a", "meta-b", "host = "+ip)
	for len(row) < DefaultLayout().Instances.TrailingSkip {
		row = append(row, fmt.Sprintf("meta-%d", len(row)))
	}
	return row
}

func instancesTable(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<table id="instances"><thead>`)
	b.WriteString(cells("th", headerTokens()))
	b.WriteString("</thead><tbody>")
	for _, row := range rows {
		b.WriteString(cells("td", row))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func disksTable(tokens []string) string {
	var b strings.Builder
	b.WriteString(`<table id="storages"><thead><tr><th>Name</th><th>Size</th><th>UUID</th></tr></thead><tbody>`)
	for i := 0; i+3 <= len(tokens); i += 3 {
		b.WriteString(cells("td", tokens[i:i+3]))
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func applianceSelect(options ...Appliance) string {
	var b strings.Builder
	b.WriteString(`<form><select name="appliance"><option value="">---------</option>`)
	for _, o := range options {
		fmt.Fprintf(&b, `<option value="%d">%s</option>`, o.ID, o.Name)
	}
	b.WriteString("</select></form>")
	return b.String()
}
