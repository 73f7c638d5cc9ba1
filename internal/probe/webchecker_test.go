package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
)

// fakeSite serves a login-form flow under /login and an OK-button flow under /welcome.
type fakeSite struct {
	mu     sync.Mutex
	logins int
	acks   int
	delay  time.Duration
}

func (f *fakeSite) counts() (logins, acks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.acks
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if r.Method == http.MethodPost {
			f.mu.Lock()
			f.logins++
			f.mu.Unlock()
			_ = r.ParseForm()
			if r.PostForm.Get("user") == "monitor" && r.PostForm.Get("pass") == "s3cret" &&
				r.PostForm.Get("csrf") == "tok" && r.PostForm.Get("action") == "login" {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "auth", Path: "/"})
				http.Redirect(w, r, "/home", http.StatusSeeOther)
				return
			}
		}
		fmt.Fprint(w, `<html><body>
<form method="post" action="/login">
  <input type="hidden" name="csrf" value="tok">
  <input id="username" name="user">
  <input id="password" name="pass" type="password">
  <button id="submit" type="submit" name="action" value="login">Entrar</button>
</form></body></html>`)
	})

	mux.HandleFunc("/welcome", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<p class="welcome" hidden>Bienvenido</p>
<form method="post" action="/ack"><button id="ok" type="submit">OK</button></form>
</body></html>`)
	})

	mux.HandleFunc("/ack", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.acks++
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ack", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusSeeOther)
	})

	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		switch {
		case err != nil:
			http.Redirect(w, r, "/login", http.StatusFound)
		case c.Value == "auth":
			fmt.Fprint(w, `<div id="dashboard">Panel</div><a class="logout" href="/logout">Salir</a>`)
		default:
			fmt.Fprint(w, `<p class="welcome">Bienvenido</p><form method="post" action="/exit"><button id="exit">Salir</button></form>`)
		}
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/exit", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		http.Redirect(w, r, "/welcome", http.StatusSeeOther)
	})
	return mux
}

var authSelectors = domain.SelectorSet{
	UserInput:        "#username",
	PassInput:        "#password",
	SubmitButton:     "#submit",
	OKButton:         "#ok",
	SuccessIndicator: "#dashboard",
	LogoutButton:     "a.logout",
}

var ackSelectors = domain.SelectorSet{
	UserInput:        "#no-such-user-field",
	PassInput:        "#no-such-pass-field",
	SubmitButton:     "#no-such-submit",
	OKButton:         "#ok",
	SuccessIndicator: ".welcome",
	LogoutButton:     "#exit",
}

func fastChecker() *HTMLWebChecker {
	return NewHTMLWebChecker(zap.NewNop(), WebTimeouts{
		Navigation:       time.Second,
		SuccessIndicator: 150 * time.Millisecond,
		ReturnIndicator:  150 * time.Millisecond,
		Poll:             20 * time.Millisecond,
	})
}

func TestHTMLWebChecker_AuthenticateFlow(t *testing.T) {
	site := &fakeSite{}
	s := httptest.NewServer(site.handler())
	defer s.Close()

	out := fastChecker().CheckWeb(context.Background(), WebRequest{
		URL: s.URL + "/login", User: "monitor", Password: "s3cret", Selectors: authSelectors, Headless: true,
	})
	if !out.Success || out.Message != WebSuccessMessage {
		t.Fatalf("want success, got %+v", out)
	}
	if logins, acks := site.counts(); logins != 1 || acks != 0 {
		t.Fatalf("want one login and no ack, got logins=%d acks=%d", logins, acks)
	}
}

func TestHTMLWebChecker_WrongPasswordTimesOutOnSuccessIndicator(t *testing.T) {
	site := &fakeSite{}
	s := httptest.NewServer(site.handler())
	defer s.Close()

	out := fastChecker().CheckWeb(context.Background(), WebRequest{
		URL: s.URL + "/login", User: "monitor", Password: "wrong", Selectors: authSelectors,
	})
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if !strings.HasPrefix(out.Message, "ERROR: Timeout") {
		t.Fatalf("want timeout message, got %q", out.Message)
	}
	if !strings.Contains(out.Message, string(StateAwaitSuccess)) || !strings.Contains(out.Message, "#dashboard") {
		t.Fatalf("message should name the state and selector: %q", out.Message)
	}
}

func TestHTMLWebChecker_AcknowledgeFlowNeverTouchesLoginSelectors(t *testing.T) {
	site := &fakeSite{}
	s := httptest.NewServer(site.handler())
	defer s.Close()

	for _, user := range []string{"", "monitor"} { // a user without password still acknowledges
		out := fastChecker().CheckWeb(context.Background(), WebRequest{
			URL: s.URL + "/welcome", User: user, Selectors: ackSelectors,
		})
		if !out.Success {
			t.Fatalf("user=%q: want success, got %+v", user, out)
		}
	}
	logins, acks := site.counts()
	if logins != 0 {
		t.Fatalf("login form must not be submitted, got %d", logins)
	}
	if acks != 2 {
		t.Fatalf("want 2 acknowledgements, got %d", acks)
	}
}

func TestHTMLWebChecker_MissingElementFailsInFlowState(t *testing.T) {
	s := httptest.NewServer((&fakeSite{}).handler())
	defer s.Close()

	sel := ackSelectors
	sel.OKButton = "#missing"
	out := fastChecker().CheckWeb(context.Background(), WebRequest{URL: s.URL + "/welcome", Selectors: sel})
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if !strings.Contains(out.Message, "AcknowledgeFlow failed") || !strings.Contains(out.Message, `"#missing" not found`) {
		t.Fatalf("unexpected message: %q", out.Message)
	}
}

func TestHTMLWebChecker_NavigationErrors(t *testing.T) {
	s := httptest.NewServer((&fakeSite{}).handler())
	url := s.URL
	s.Close()

	out := fastChecker().CheckWeb(context.Background(), WebRequest{URL: url + "/login", Selectors: authSelectors})
	if out.Success || !strings.Contains(out.Message, "NavigateInitial failed") {
		t.Fatalf("closed server: unexpected outcome %+v", out)
	}

	slow := &fakeSite{delay: 300 * time.Millisecond}
	s2 := httptest.NewServer(slow.handler())
	defer s2.Close()

	chk := fastChecker()
	chk.Timeouts.Navigation = 50 * time.Millisecond
	out = chk.CheckWeb(context.Background(), WebRequest{URL: s2.URL + "/login", Selectors: authSelectors})
	if out.Success || !strings.HasPrefix(out.Message, "ERROR: Timeout") || !strings.Contains(out.Message, string(StateNavigate)) {
		t.Fatalf("slow server: unexpected outcome %+v", out)
	}
}

func TestHTMLWebChecker_HTTPErrorStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer s.Close()

	out := fastChecker().CheckWeb(context.Background(), WebRequest{URL: s.URL, Selectors: authSelectors})
	if out.Success || !strings.Contains(out.Message, "500") {
		t.Fatalf("want 500 failure, got %+v", out)
	}
}

func TestVisible(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<div id="a">shown</div>
<div id="b" hidden>hidden</div>
<div style="display: none"><span id="c">inside hidden parent</span></div>
<input id="d" type="hidden" name="x">
<p class="many" hidden>one</p><p class="many">two</p>`))
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{"#a": true, "#b": false, "#c": false, "#d": false, ".many": true, "#none": false}
	for sel, want := range cases {
		if got := visible(doc.Find(sel)); got != want {
			t.Errorf("visible(%s)=%v want %v", sel, got, want)
		}
	}
}

func TestFormValues(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<form>
<input name="a" value="1"><input name="skip" type="submit" value="go">
<input name="c1" type="checkbox" checked><input name="c2" type="checkbox">
<select name="s"><option value="x">X</option><option value="y" selected>Y</option></select>
<textarea name="t">note</textarea><input name="d" value="z" disabled></form>`))
	if err != nil {
		t.Fatal(err)
	}
	vals := formValues(doc.Find("form"))
	if vals.Get("a") != "1" || vals.Get("c1") != "on" || vals.Get("s") != "y" || vals.Get("t") != "note" {
		t.Fatalf("unexpected values: %v", vals)
	}
	for _, k := range []string{"skip", "c2", "d"} {
		if vals.Has(k) {
			t.Fatalf("%s should not be submitted: %v", k, vals)
		}
	}
}
