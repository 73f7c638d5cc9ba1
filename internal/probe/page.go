package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "healthreport/1.0 (+web-check)"

// TimeoutError reports a bounded wait that ran out.
type TimeoutError struct {
	What  string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("Timeout %s waiting for %s", e.After, e.What)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// session is one headless browsing context: cookies persist across requests.
type session struct {
	client *http.Client
}

func newSession() (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // internal UIs often use self-signed certs
	}
	return &session{client: &http.Client{Jar: jar, Transport: tr}}, nil
}

func (s *session) close() {
	s.client.CloseIdleConnections()
}

type page struct {
	url *url.URL
	doc *goquery.Document
}

func (s *session) do(ctx context.Context, req *http.Request, timeout time.Duration) (*page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{What: "response from " + req.URL.Redacted(), After: timeout, Err: err}
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s", req.Method, req.URL.Redacted(), resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{What: "body of " + req.URL.Redacted(), After: timeout, Err: err}
		}
		return nil, fmt.Errorf("parse %s: %w", req.URL.Redacted(), err)
	}
	return &page{url: resp.Request.URL, doc: doc}, nil
}

func (s *session) get(ctx context.Context, target string, timeout time.Duration) (*page, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, req, timeout)
}

// waitFor re-reads the current page until selector matches a visible element.
func (s *session) waitFor(ctx context.Context, p *page, selector string, timeout, poll time.Duration) (*page, error) {
	deadline := time.Now().Add(timeout)
	for {
		if visible(p.doc.Find(selector)) {
			return p, nil
		}
		if time.Now().Add(poll).After(deadline) {
			return nil, &TimeoutError{What: fmt.Sprintf("%q to be visible", selector), After: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}

		next, err := s.get(ctx, p.url.String(), time.Until(deadline))
		if err != nil {
			var te *TimeoutError
			if errors.As(err, &te) {
				return nil, &TimeoutError{What: fmt.Sprintf("%q to be visible", selector), After: timeout, Err: err}
			}
			return nil, err
		}
		p = next
	}
}

// click follows a link, or submits the form that contains the element.
func (s *session) click(ctx context.Context, p *page, selector string, timeout time.Duration) (*page, error) {
	el := p.doc.Find(selector).First()
	if el.Length() == 0 {
		return nil, fmt.Errorf("element %q not found on %s", selector, p.url.Redacted())
	}

	if goquery.NodeName(el) == "a" {
		href := strings.TrimSpace(el.AttrOr("href", ""))
		if href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			target, err := p.url.Parse(href)
			if err != nil {
				return nil, fmt.Errorf("element %q: bad href: %w", selector, err)
			}
			return s.get(ctx, target.String(), timeout)
		}
	}

	form := el.Closest("form")
	if form.Length() == 0 {
		return nil, fmt.Errorf("element %q is neither a link nor inside a form", selector)
	}
	return s.submit(ctx, p, form, el, nil, timeout)
}

// login fills the user and password inputs and clicks the submit control.
func (s *session) login(ctx context.Context, p *page, userSel, passSel, submitSel, user, password string, timeout time.Duration) (*page, error) {
	fields := make(map[string]string, 2)
	for _, f := range []struct{ sel, value string }{{userSel, user}, {passSel, password}} {
		el := p.doc.Find(f.sel).First()
		if el.Length() == 0 {
			return nil, fmt.Errorf("element %q not found on %s", f.sel, p.url.Redacted())
		}
		name := el.AttrOr("name", "")
		if name == "" {
			return nil, fmt.Errorf("element %q has no name attribute", f.sel)
		}
		fields[name] = f.value
	}

	btn := p.doc.Find(submitSel).First()
	if btn.Length() == 0 {
		return nil, fmt.Errorf("element %q not found on %s", submitSel, p.url.Redacted())
	}
	form := btn.Closest("form")
	if form.Length() == 0 {
		return nil, fmt.Errorf("element %q is not inside a form", submitSel)
	}
	return s.submit(ctx, p, form, btn, fields, timeout)
}

func (s *session) submit(ctx context.Context, p *page, form, clicked *goquery.Selection, fields map[string]string, timeout time.Duration) (*page, error) {
	vals := formValues(form)
	for k, v := range fields {
		vals.Set(k, v)
	}
	if name := clicked.AttrOr("name", ""); name != "" {
		vals.Set(name, clicked.AttrOr("value", ""))
	}

	action := form.AttrOr("action", "")
	if fa, ok := clicked.Attr("formaction"); ok {
		action = fa
	}
	target, err := p.url.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("form action %q: %w", action, err)
	}

	var req *http.Request
	if strings.EqualFold(form.AttrOr("method", http.MethodGet), http.MethodPost) {
		req, err = http.NewRequest(http.MethodPost, target.String(), strings.NewReader(vals.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		target.RawQuery = vals.Encode()
		req, err = http.NewRequest(http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, err
		}
	}
	return s.do(ctx, req, timeout)
}

// formValues collects what a browser would send for form, minus submit controls.
func formValues(form *goquery.Selection) url.Values {
	vals := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, f *goquery.Selection) {
		name := f.AttrOr("name", "")
		if name == "" {
			return
		}
		if _, disabled := f.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(f) {
		case "input":
			switch strings.ToLower(f.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := f.Attr("checked"); checked {
					vals.Add(name, f.AttrOr("value", "on"))
				}
				return
			}
			vals.Add(name, f.AttrOr("value", ""))
		case "textarea":
			vals.Add(name, f.Text())
		case "select":
			opt := f.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = f.Find("option").First()
			}
			if opt.Length() > 0 {
				v, ok := opt.Attr("value")
				if !ok {
					v = strings.TrimSpace(opt.Text())
				}
				vals.Add(name, v)
			}
		}
	})
	return vals
}

// visible approximates element visibility from markup: hidden attributes,
// hidden inputs and inline display:none / visibility:hidden on the element or
// an ancestor.
func visible(sel *goquery.Selection) bool {
	found := false
	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if goquery.NodeName(el) == "input" && strings.EqualFold(el.AttrOr("type", ""), "hidden") {
			return true
		}
		hidden := false
		el.ParentsUntil("html").AddBack().EachWithBreak(func(_ int, n *goquery.Selection) bool {
			if _, ok := n.Attr("hidden"); ok {
				hidden = true
				return false
			}
			style := strings.ToLower(strings.ReplaceAll(n.AttrOr("style", ""), " ", ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				hidden = true
				return false
			}
			return true
		})
		if !hidden {
			found = true
			return false
		}
		return true
	})
	return found
}
