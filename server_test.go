package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"i4.energy/across/espgw/esp"
)

func newTestServer(t *testing.T) (*Server, *esp.TestTransport) {
	t.Helper()

	transport := esp.NewTestTransport()
	transport.SendData("\r\nOK\r\n")
	transport.SendData("\r\nOK\r\n")

	config, err := esp.NewConfigBuilder().
		WithDialer(transport.Dialer()).
		WithResponseTimeout(100 * time.Millisecond).
		WithJoinTimeout(100 * time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	d, err := esp.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return &Server{Logger: slog.New(slog.DiscardHandler), Device: d}, transport
}

func TestServerStatus(t *testing.T) {
	s, transport := newTestServer(t)
	transport.SendData("\r\nOK\r\n")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Started bool `json:"started"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Started {
		t.Error("expected started to be true")
	}
}

func TestServerIP(t *testing.T) {
	t.Run("Address returned", func(t *testing.T) {
		s, transport := newTestServer(t)
		transport.SendData("\r\n10.0.0.42\r\n\r\nOK\r\n")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ip", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), `"ip":"10.0.0.42"`) {
			t.Errorf("unexpected body: %s", rec.Body)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		s, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ip", nil))

		if rec.Code != http.StatusGatewayTimeout {
			t.Errorf("expected 504, got %d", rec.Code)
		}
	})
}

func TestServerConnect(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		reply    string
		expected int
	}{
		{
			name:     "Linked",
			body:     `{"protocol":"tcp","host":"example.com","port":80}`,
			reply:    "\r\nOK\r\nLinked\r\n",
			expected: http.StatusOK,
		},
		{
			name:     "Not linked",
			body:     `{"host":"example.com","port":80}`,
			reply:    "\r\nOK\r\nUnlink\r\n",
			expected: http.StatusBadGateway,
		},
		{
			name:     "Missing port",
			body:     `{"host":"example.com"}`,
			expected: http.StatusBadRequest,
		},
		{
			name:     "Unknown protocol",
			body:     `{"protocol":"ssl","host":"example.com","port":443}`,
			expected: http.StatusBadRequest,
		},
		{
			name:     "Invalid JSON",
			body:     `{`,
			expected: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, transport := newTestServer(t)
			if tt.reply != "" {
				transport.SendData(tt.reply)
			}

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader(tt.body)))

			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d: %s", tt.expected, rec.Code, rec.Body)
			}
		})
	}
}

func TestServerSend(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		replies  []string
		expected int
	}{
		{
			name:     "Accepted",
			body:     `{"data":"hello"}`,
			replies:  []string{"\r\nOK\r\n> ", "\r\nSEND OK\r\n"},
			expected: http.StatusOK,
		},
		{
			name:     "Rejected",
			body:     `{"data":"hello"}`,
			replies:  []string{"\r\nOK\r\n> ", "\r\nSEND FAIL\r\n"},
			expected: http.StatusBadGateway,
		},
		{
			name:     "Empty data",
			body:     `{"data":""}`,
			expected: http.StatusBadRequest,
		},
		{
			name:     "Too large",
			body:     `{"data":"` + strings.Repeat("x", 3000) + `"}`,
			expected: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, transport := newTestServer(t)
			for _, r := range tt.replies {
				transport.SendData(r)
			}

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body)))

			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d: %s", tt.expected, rec.Code, rec.Body)
			}
		})
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/send", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
