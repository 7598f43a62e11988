package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testTelegram(t *testing.T, handler http.HandlerFunc) (*Telegram, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tg := NewTelegram("test-token", "42", zerolog.Nop())
	tg.baseURL = srv.URL
	tg.wait = func(context.Context, time.Duration) bool { return true }
	return tg, srv
}

func TestSendPostsEscapedMessage(t *testing.T) {
	var gotPath, gotChat, gotText, gotMode string
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		gotMode = r.PostFormValue("parse_mode")
		w.WriteHeader(http.StatusOK)
	})

	if err := tg.Send(context.Background(), "PnL: +1.5 USD (net)"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotChat != "42" || gotMode != "MarkdownV2" {
		t.Fatalf("unexpected form chat=%q mode=%q", gotChat, gotMode)
	}
	if gotText != "PnL: \\+1\\.5 USD \\(net\\)" {
		t.Fatalf("unexpected escaped text %q", gotText)
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var calls int
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSendGivesUpAfterBudget(t *testing.T) {
	var calls int
	tg, _ := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	err := tg.Send(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	in := "_*[]()~`>#+-=|{}.!"
	want := "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"
	if got := EscapeMarkdownV2(in); got != want {
		t.Fatalf("escape mismatch\n got %q\nwant %q", got, want)
	}
}
