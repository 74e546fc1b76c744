//go:build functional

package functional

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

func TestFunctional_PublicPages(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	browser := NewBrowser(t, ts.BaseURL)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantContent string
	}{
		{"health", "/health", http.StatusOK, "application/json", `"healthy"`},
		{"landing", "/", http.StatusOK, "text/html; charset=utf-8", "Seguridad Domiciliaria a tu Alcance"},
		{"login form", "/login", http.StatusOK, "text/html; charset=utf-8", "<form"},
		{"metrics", "/metrics", http.StatusOK, "", "http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := browser.Get(tt.path, nil)

			AssertStatusCode(t, resp, tt.wantStatus)
			if tt.wantType != "" {
				AssertHeader(t, resp, "Content-Type", tt.wantType)
			}
			if !strings.Contains(string(resp.Body), tt.wantContent) {
				t.Errorf("body does not contain %q", tt.wantContent)
			}
		})
	}
}

func TestFunctional_AdminRequiresLogin(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	browser := NewBrowser(t, ts.BaseURL)

	resp := browser.Get("/admin", nil)
	AssertStatusCode(t, resp, http.StatusFound)
	AssertHeader(t, resp, "Location", "/login")

	resp = browser.PostForm("/admin/add", url.Values{"name": {"x"}}, map[string]string{"Accept": "application/json"})
	AssertStatusCode(t, resp, http.StatusUnauthorized)

	browser.Login()
	resp = browser.Get("/admin", nil)
	AssertStatusCode(t, resp, http.StatusOK)
	AssertHeader(t, resp, "Cache-Control", "no-store")

	resp = browser.Get("/logout", nil)
	AssertStatusCode(t, resp, http.StatusFound)
	resp = browser.Get("/admin", nil)
	AssertStatusCode(t, resp, http.StatusFound)
}

func TestFunctional_CatalogChangesReachDashboard(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	browser := NewBrowser(t, ts.BaseURL)
	browser.Login()

	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"/admin/events", browser.CookieHeader())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	defer conn.Close()

	// Registration races the first publish; wait for the hub to see us.
	deadline := time.Now().Add(2 * time.Second)
	for ts.Server.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dashboard never registered with the change feed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	created := browser.PostForm("/admin/add", url.Values{
		"name":        {"Cámara IP"},
		"description": {"Visión nocturna"},
		"imageUrl":    {"https://cdn.example.com/camara.png"},
	}, map[string]string{"Accept": "application/json"})
	AssertStatusCode(t, created, http.StatusCreated)

	var body model.APIResponse[model.Product]
	if err := json.Unmarshal(created.Body, &body); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if !body.Success || body.Item.ID == "" {
		t.Fatalf("create response = %s", created.Body)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var event model.ChangeEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if event.Type != model.EventCreated || event.Collection != model.CollectionProducts || event.ID != body.Item.ID {
		t.Errorf("event = %+v", event)
	}

	list := NewBrowser(t, ts.BaseURL).Get("/admin/products/list", nil)
	AssertStatusCode(t, list, http.StatusOK)
	var products []model.Product
	if err := json.Unmarshal(list.Body, &products); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Cámara IP" {
		t.Errorf("products = %+v", products)
	}

	landing := browser.Get("/", nil)
	if !strings.Contains(string(landing.Body), "Visión nocturna") {
		t.Error("landing page does not show the new product")
	}
}

func TestFunctional_GalleryUploadIsServed(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	browser := NewBrowser(t, ts.BaseURL)
	browser.Login()

	data := make([]byte, 4096)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("description", "Instalación terminada"); err != nil {
		t.Fatal(err)
	}
	part, err := w.CreateFormFile("file", "obra.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	resp := browser.Do(http.MethodPost, "/admin/gallery/add", &buf, map[string]string{
		"Content-Type": w.FormDataContentType(),
	})
	AssertStatusCode(t, resp, http.StatusCreated)

	var body model.APIResponse[model.GalleryItem]
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if body.Item.Type != model.KindImage || !strings.HasPrefix(body.Item.FileURL, "/uploads/") {
		t.Fatalf("item = %+v", body.Item)
	}

	served := NewBrowser(t, ts.BaseURL).Get(body.Item.FileURL, nil)
	AssertStatusCode(t, served, http.StatusOK)
	if !bytes.Equal(served.Body, data) {
		t.Errorf("served %d bytes, want %d", len(served.Body), len(data))
	}

	deleted := browser.Do(http.MethodDelete, "/admin/gallery/delete/"+body.Item.ID, nil, nil)
	AssertStatusCode(t, deleted, http.StatusOK)

	gone := NewBrowser(t, ts.BaseURL).Get(body.Item.FileURL, nil)
	AssertStatusCode(t, gone, http.StatusNotFound)
}

func TestFunctional_ContactForm(t *testing.T) {
	ts := NewTestServer(t)
	ts.Start()
	browser := NewBrowser(t, ts.BaseURL)

	resp := browser.PostForm("/contact", url.Values{
		"name":    {"Lucía"},
		"email":   {"lucia@example.com"},
		"message": {"Quisiera una cotización"},
	}, map[string]string{"Accept": "application/json"})
	AssertStatusCode(t, resp, http.StatusOK)

	msgs := ts.Mail.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "lucia@example.com") {
		t.Errorf("message does not carry the reply address: %s", msgs[0])
	}

	bad := browser.PostForm("/contact", url.Values{"name": {"x"}, "email": {"no"}, "message": {"y"}},
		map[string]string{"Accept": "application/json"})
	AssertStatusCode(t, bad, http.StatusBadRequest)
	if len(ts.Mail.Messages()) != 1 {
		t.Error("invalid enquiry must not be mailed")
	}
}
