package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/i18n"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/class"
	"gymdesk/internal/domain/identity"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/personal"
	"gymdesk/internal/domain/product"
	"gymdesk/internal/domain/reservation"
)

//go:embed templates/*.html
var templateFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// imageURL turns an inline base64 image into a data URI for <img src>.
func imageURL(b64 string) template.URL {
	if strings.HasPrefix(b64, "data:") {
		return template.URL(b64)
	}
	mime := http.DetectContentType(decodedPrefix(b64))
	return template.URL("data:" + mime + ";base64," + b64)
}

// decodedPrefix decodes enough of b64 to sniff its content type.
func decodedPrefix(b64 string) []byte {
	n := min(len(b64), 684) &^ 3
	raw, _ := base64.StdEncoding.DecodeString(b64[:n])
	return raw
}

// renderer holds one parsed template set per page. Request-scoped functions
// are bound on a clone at render time.
type renderer struct {
	pages map[string]*template.Template
	tr    *i18n.Translator
}

func newRenderer(tr *i18n.Translator) (*renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	rd := &renderer{pages: make(map[string]*template.Template, len(names)), tr: tr}
	for _, name := range names {
		base := path.Base(name)
		if base == "layout.html" {
			continue
		}
		tpl, err := template.New("layout.html").
			Funcs(rd.funcs(nil)).
			ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		rd.pages[base] = tpl
	}
	return rd, nil
}

// funcs returns the template functions. A nil request yields placeholders
// used only while parsing.
func (rd *renderer) funcs(r *http.Request) template.FuncMap {
	locale := i18n.Default
	var user identity.User
	signedIn := false
	currentPath := "/"
	if r != nil {
		locale = i18n.LocaleFrom(r.Context())
		user, signedIn = middleware.GetUserFromContext(r.Context())
		currentPath = r.URL.Path
	}
	return template.FuncMap{
		"t": func(key string, args ...any) string {
			return rd.tr.T(locale, key, args...)
		},
		"locale":      func() string { return locale },
		"otherLocale": func() string { return i18n.Toggle(locale) },
		"user":        func() identity.User { return user },
		"signedIn":    func() bool { return signedIn },
		"isStaff":     func() bool { return signedIn && identity.IsStaff(user.Role) },
		"isAdmin":     func() bool { return signedIn && user.Role == identity.RoleAdmin },
		"currentPath": func() string { return currentPath },
		"csrfField": func() template.HTML {
			if r == nil {
				return ""
			}
			return csrf.TemplateField(r)
		},
		"money":          func(v float64) string { return i18n.FormatMoney(locale, v) },
		"number":         func(n int) string { return i18n.FormatNumber(locale, n) },
		"renderMarkdown": renderMarkdown,
		"add":            func(a, b int) int { return a + b },
		"sub":            func(a, b int) int { return a - b },
		"join":           strings.Join,
		"pageQuery": func(lp listutil.ListParams, page int) template.URL {
			return template.URL(lp.Query(page))
		},
		"selected": func(a, b string) template.HTMLAttr {
			if a == b {
				return "selected"
			}
			return ""
		},
		"weekdays":       func() []string { return class.ValidDays },
		"blankSession":   func() class.Session { return class.Session{} },
		"categories":     func() []string { return product.ValidCategories },
		"blankPersonal":  func() personal.Personal { return personal.Personal{} },
		"imageURL":       imageURL,
		"memberStatuses": func() []string { return member.ValidStatuses },
		"staffRoles":     func() []string { return personal.ValidRoles },
		"accessLevels":   func() []string { return personal.ValidAccessLevels },
		"checked": func(b bool) template.HTMLAttr {
			if b {
				return "checked"
			}
			return ""
		},
	}
}

// render executes page into a buffer so a template failure never leaves a
// half-written response.
func (s *server) render(w http.ResponseWriter, r *http.Request, page string, status int, data map[string]any) {
	tpl, ok := s.pages.pages[page]
	if !ok {
		internalError(w, fmt.Errorf("unknown template %q", page))
		return
	}
	clone, err := tpl.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	clone.Funcs(s.pages.funcs(r))
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Flash"]; !ok {
		if key := flashKey(r.URL.Query().Get("ok")); key != "" {
			data["Flash"] = s.t(r, key)
		}
	}
	var buf bytes.Buffer
	if err := clone.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// flashKey maps the ?ok= redirect marker onto a translation key.
func flashKey(marker string) string {
	switch marker {
	case "created":
		return "common.created"
	case "saved":
		return "common.saved"
	case "deleted":
		return "common.deleted"
	case "profile":
		return "client.profile_saved"
	case "reserved":
		return "client.reserved"
	}
	return ""
}

// t translates key in the request locale.
func (s *server) t(r *http.Request, key string, args ...any) string {
	return s.Translator.T(i18n.LocaleFrom(r.Context()), key, args...)
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

const maxJSONBody = 4 << 20

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// invalidInput marks an error caused by the submitted data.
type invalidInput struct{ err error }

func (e invalidInput) Error() string { return e.err.Error() }
func (e invalidInput) Unwrap() error { return e.err }

// badInput wraps err unless it already describes an upstream failure.
func badInput(err error) error {
	var re *backend.RequestError
	if err == nil || errors.As(err, &re) || errors.Is(err, backend.ErrNotAuthenticated) {
		return err
	}
	return invalidInput{err: err}
}

// errorStatuses maps workflow errors onto HTTP statuses.
var errorStatuses = []struct {
	err    error
	status int
}{
	{orchestrators.ErrDateInPast, http.StatusBadRequest},
	{orchestrators.ErrNoSessionOnDay, http.StatusBadRequest},
	{orchestrators.ErrClassNotActive, http.StatusConflict},
	{orchestrators.ErrAlreadyReserved, http.StatusConflict},
	{orchestrators.ErrClassFull, http.StatusConflict},
	{orchestrators.ErrNotYourBooking, http.StatusForbidden},
	{orchestrators.ErrNoMemberRecord, http.StatusNotFound},
	{orchestrators.ErrUnsupportedLocale, http.StatusBadRequest},
	{reservation.ErrAlreadyCancelled, http.StatusConflict},
	{reservation.ErrAlreadyAttended, http.StatusConflict},
	{access.ErrEmptyMemberID, http.StatusBadRequest},
	{access.ErrAlreadyPaired, http.StatusConflict},
	{access.ErrNotPaired, http.StatusConflict},
	{member.ErrEmptyName, http.StatusBadRequest},
	{member.ErrNameTooLong, http.StatusBadRequest},
}

// describeError maps err onto a status and a message in the request locale.
// Unexpected errors are logged and shown generically.
func (s *server) describeError(r *http.Request, err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, err.Error()
		}
	}
	var input invalidInput
	if errors.As(err, &input) {
		return http.StatusBadRequest, s.t(r, "errors.validation", input.err.Error())
	}
	if backend.IsUnauthorized(err) {
		return http.StatusUnauthorized, s.t(r, backend.MsgNotAuthenticated)
	}
	var re *backend.RequestError
	if errors.As(err, &re) {
		msg := s.t(r, backend.MsgRequestFailed)
		if detail := backend.Detail(err); detail != "" {
			msg += " " + detail
		}
		status := http.StatusBadGateway
		if re.StatusCode >= 400 && re.StatusCode < 500 {
			status = re.StatusCode
		}
		return status, msg
	}
	slog.Error("request_failed", "path", r.URL.Path, "request_id", middleware.RequestID(r.Context()), "error", err)
	return http.StatusInternalServerError, s.t(r, backend.MsgGeneric)
}

// fail answers a failed JSON request, or a failed form post without a page
// of its own to re-render.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := s.describeError(r, err)
	if isHTMLRequest(r) {
		s.render(w, r, "error.html", status, map[string]any{"Error": msg, "Status": status})
		return
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func localeOf(r *http.Request) string {
	return i18n.LocaleFrom(r.Context())
}
