package ifb

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"ifbcloud/internal/metrics"
)

const (
	csrfCookieName = "csrftoken"
	csrfFormField  = "csrfmiddlewaretoken"
)

// SessionConfig 配置门户会话。
type SessionConfig struct {
	BaseURL     string
	LoginPath   string
	LandingPath string
	// InsecureSkipVerify 关闭 TLS 证书校验。门户证书无法被客户端校验，默认配置会打开它。
	InsecureSkipVerify bool
	Timeout            time.Duration
	// HTTPClient 可选，替换默认的 http.Client；没有 Jar 时自动补上。
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Page 一次请求最终落地的页面。
type Page struct {
	URL  *url.URL
	Body []byte
}

// Session 持有 cookie 与 csrftoken 的门户会话，不支持并发使用。
type Session struct {
	httpClient *http.Client
	baseURL    *url.URL
	loginURL   *url.URL
	creds      Credentials
	token      string
	logger     *zap.Logger
}

// Establish 获取 csrftoken 并登录，返回登录后落地的 LandingPath 页面。
func Establish(ctx context.Context, cfg SessionConfig, creds Credentials) (*Session, Page, error) {
	s, err := newSession(cfg, creds)
	if err != nil {
		return nil, Page{}, err
	}
	if err := s.fetchToken(ctx); err != nil {
		return nil, Page{}, err
	}
	page, err := s.Authenticate(ctx, cfg.LandingPath)
	if err != nil {
		return nil, Page{}, err
	}
	s.logger.Info("portal session established", zap.String("user", creds.Username), zap.String("portal", s.baseURL.Host))
	return s, page, nil
}

func newSession(cfg SessionConfig, creds Credentials) (*Session, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: 门户地址不能为空", ErrInvalidArgument)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: 用户名和密码不能为空", ErrInvalidArgument)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: 解析门户地址失败: %v", ErrInvalidArgument, err)
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/accounts/login"
	}
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InsecureSkipVerify && cfg.HTTPClient == nil {
		logger.Warn("TLS certificate verification disabled for portal", zap.String("portal", base.Host))
	}
	return &Session{
		httpClient: client,
		baseURL:    base,
		loginURL:   base.ResolveReference(&url.URL{Path: loginPath}),
		creds:      creds,
		logger:     logger,
	}, nil
}

func newHTTPClient(cfg SessionConfig) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建 cookie jar 失败: %w", err)
	}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		if c.Jar == nil {
			c.Jar = jar
		}
		return &c, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Transport: transport, Jar: jar, Timeout: timeout}, nil
}

// Token 返回本会话的 csrftoken。
func (s *Session) Token() string {
	return s.token
}

// URL 把门户内的路径解析为绝对地址。
func (s *Session) URL(path string) string {
	return s.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func (s *Session) fetchToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.loginURL.String(), nil)
	if err != nil {
		return fmt.Errorf("构建登录页请求失败: %w", err)
	}
	if _, err := s.do("login_page", req); err != nil {
		return err
	}
	for _, c := range s.httpClient.Jar.Cookies(s.loginURL) {
		if c.Name == csrfCookieName && c.Value != "" {
			s.token = c.Value
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAuthTokenMissing, s.loginURL)
}

// Authenticate 重新提交登录表单，返回门户跳转到 nextPath 后的页面。
// 需要读取页面数据的操作都应先调用它。
func (s *Session) Authenticate(ctx context.Context, nextPath string) (Page, error) {
	form := url.Values{
		"username":    {s.creds.Username},
		"password":    {s.creds.Password},
		csrfFormField: {s.token},
		"next":        {nextPath},
	}
	req, err := s.newFormRequest(ctx, s.loginURL.String(), form)
	if err != nil {
		return Page{}, err
	}
	page, err := s.do("login", req)
	if err != nil {
		return Page{}, err
	}
	if samePath(page.URL.Path, s.loginURL.Path) {
		return Page{}, fmt.Errorf("%w: 用户 %s 登录后仍停留在登录页", ErrLoginRejected, s.creds.Username)
	}
	s.logger.Debug("portal login", zap.String("next", nextPath), zap.String("landing", page.URL.Path))
	return page, nil
}

// Submit 以浏览器的方式提交表单，自动带上 csrftoken。
func (s *Session) Submit(ctx context.Context, op, path string, form url.Values) (Page, error) {
	target := s.URL(path)
	values := url.Values{}
	for k, v := range form {
		values[k] = v
	}
	values.Set(csrfFormField, s.token)
	req, err := s.newFormRequest(ctx, target, values)
	if err != nil {
		return Page{}, err
	}
	return s.do(op, req)
}

func (s *Session) newFormRequest(ctx context.Context, target string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("构建表单请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", target)
	return req, nil
}

func (s *Session) do(op string, req *http.Request) (page Page, err error) {
	start := time.Now()
	defer func() { metrics.ObservePortalRequest(op, start, err) }()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: 读取 %s 响应失败: %w", ErrNetwork, req.URL.Path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Page{}, fmt.Errorf("%w: %s %s 返回状态码 %d", ErrNetwork, req.Method, req.URL.Path, resp.StatusCode)
	}
	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return Page{URL: final, Body: body}, nil
}

func samePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
