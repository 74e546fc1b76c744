//go:build functional

// Package functional runs the site end to end over a real listener.
package functional

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
	"github.com/vyrodovalexey/safehome-site/internal/config"
	"github.com/vyrodovalexey/safehome-site/internal/mailer"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/server"
	"github.com/vyrodovalexey/safehome-site/internal/session"
	"github.com/vyrodovalexey/safehome-site/internal/store"
	"github.com/vyrodovalexey/safehome-site/internal/view"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost = "TEST_SERVER_HOST"
	EnvTestTimeout    = "TEST_TIMEOUT"
)

// Default test configuration values.
const (
	DefaultTestHost        = "127.0.0.1"
	DefaultTestTimeout     = 30 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second

	testAdminUser     = "admin"
	testAdminPassword = "admin123"
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host    string
	Timeout time.Duration
}

// LoadTestConfig loads test configuration from environment variables.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:    DefaultTestHost,
		Timeout: DefaultTestTimeout,
	}

	if host := os.Getenv(EnvTestServerHost); host != "" {
		cfg.Host = host
	}
	if timeoutStr := os.Getenv(EnvTestTimeout); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	return cfg
}

// TestServer runs the site on a free port with a file store and disk media
// rooted in temporary directories.
type TestServer struct {
	Server  *server.Server
	Store   *store.FileStore
	Mail    *mailbox
	BaseURL string
	WSURL   string
	t       *testing.T
	timeout time.Duration
	mu      sync.Mutex
	started bool
}

// mailbox records the messages handed to the SMTP sender.
type mailbox struct {
	mu   sync.Mutex
	sent []string
}

func (m *mailbox) send(_ string, _ []string, msg io.WriterTo) error {
	var b strings.Builder
	if _, err := msg.WriteTo(&b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, b.String())
	return nil
}

// Messages returns the raw messages sent so far.
func (m *mailbox) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// NewTestServer creates a new test server instance.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()

	listener, err := net.Listen("tcp", net.JoinHostPort(testCfg.Host, "0"))
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := config.Default()
	cfg.ServerPort = port
	cfg.StoreBackend = store.BackendFile
	cfg.DataDir = t.TempDir()
	cfg.UploadDir = t.TempDir()
	cfg.MetricsEnabled = true

	logger := zap.NewNop()

	records, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	disk, err := media.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		t.Fatalf("NewDiskStorage() error = %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	creds, err := auth.NewCredentials(testAdminUser, "", string(hash))
	if err != nil {
		t.Fatalf("NewCredentials() error = %v", err)
	}
	renderer, err := view.New(view.DefaultSiteCopy())
	if err != nil {
		t.Fatalf("view.New() error = %v", err)
	}
	sessionStore := session.NewStore(session.NewMemoryBackend(), securecookie.GenerateRandomKey(32))

	box := &mailbox{}
	contact := mailer.NewWithSender(mailer.Config{
		From: "web@seguridad.test",
		To:   "ventas@seguridad.test",
	}, gomail.SendFunc(box.send), logger)

	srv := server.New(cfg, logger, server.Deps{
		Store:       records,
		Ingestor:    media.NewIngestor(disk, cfg.MediaMaxBytes, logger),
		Renderer:    renderer,
		Sessions:    session.NewManager(sessionStore, creds, time.Hour, logger),
		Credentials: creds,
		Contact:     contact,
		Disk:        disk,
	})

	host := net.JoinHostPort(testCfg.Host, strconv.Itoa(port))
	return &TestServer{
		Server:  srv,
		Store:   records,
		Mail:    box,
		BaseURL: "http://" + host,
		WSURL:   "ws://" + host,
		t:       t,
		timeout: testCfg.Timeout,
	}
}

// Start starts the test server and registers its shutdown.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		if err := ts.Server.Start(); err != nil {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.waitForReady()
	ts.started = true
	ts.t.Cleanup(ts.Stop)
}

// waitForReady waits for the server to be ready to accept connections.
func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop stops the test server.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}
	if err := ts.Store.Close(); err != nil {
		ts.t.Logf("Store close error: %v", err)
	}

	ts.started = false
}

// Browser is an HTTP client with a cookie jar that does not follow
// redirects, so tests can assert on them.
type Browser struct {
	client  *http.Client
	baseURL string
	t       *testing.T
}

// NewBrowser creates a new Browser for baseURL.
func NewBrowser(t *testing.T, baseURL string) *Browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &Browser{
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		t:       t,
	}
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request and returns the response.
func (b *Browser) Do(method, path string, body io.Reader, headers map[string]string) *Response {
	b.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		b.t.Fatalf("failed to create request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("failed to read response body: %v", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}
}

// Get performs a GET request.
func (b *Browser) Get(path string, headers map[string]string) *Response {
	b.t.Helper()
	return b.Do(http.MethodGet, path, nil, headers)
}

// PostForm submits a URL-encoded form.
func (b *Browser) PostForm(path string, values url.Values, headers map[string]string) *Response {
	b.t.Helper()

	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	return b.Do(http.MethodPost, path, strings.NewReader(values.Encode()), h)
}

// Login signs the browser in as the administrator.
func (b *Browser) Login() {
	b.t.Helper()

	resp := b.PostForm("/login", url.Values{
		"username": {testAdminUser},
		"password": {testAdminPassword},
	}, nil)
	AssertStatusCode(b.t, resp, http.StatusFound)
}

// CookieHeader returns the Cookie header the browser would send to baseURL.
func (b *Browser) CookieHeader() http.Header {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		b.t.Fatalf("url.Parse() error = %v", err)
	}
	var parts []string
	for _, c := range b.client.Jar.Cookies(u) {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	h := http.Header{}
	if len(parts) > 0 {
		h.Set("Cookie", strings.Join(parts, "; "))
	}
	return h
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertHeader asserts that the response has the expected header value.
func AssertHeader(t *testing.T, resp *Response, key, expected string) {
	t.Helper()
	actual := resp.Headers.Get(key)
	if actual != expected {
		t.Errorf("Expected header %s to be %q, got %q", key, expected, actual)
	}
}
