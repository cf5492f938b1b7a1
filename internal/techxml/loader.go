package techxml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/imr/Electric8/internal/tech"
)

// Report is a user-facing description of a failed load.
type Report struct {
	Title   string
	Message string
	Err     error
}

func (r *Report) Error() string { return r.Message }

func (r *Report) Unwrap() error { return r.Err }

// Reporter presents load failures to the user.
type Reporter interface {
	ShowError(title, message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(title, message string)

// ShowError calls f(title, message).
func (f ReporterFunc) ShowError(title, message string) { f(title, message) }

// Loader fetches and decodes technology documents from file paths or
// http, https and file URLs.
type Loader struct {
	Client   *http.Client
	Reporter Reporter
	Logger   *slog.Logger
	Options  []Option
}

// NewLoader returns a Loader with a default HTTP client.
func NewLoader(reporter Reporter, logger *slog.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Client:   &http.Client{Timeout: 30 * time.Second},
		Reporter: reporter,
		Logger:   logger,
		Options:  opts,
	}
}

// Load decodes the document at location. Every failure is returned as a
// *Report, which is also logged and handed to the Reporter.
func (l *Loader) Load(ctx context.Context, location string) (*tech.Technology, error) {
	start := time.Now()
	t, err := l.load(ctx, location)
	return l.finish(location, start, t, err)
}

// LoadReader decodes an already opened document named name, reporting
// failures the same way Load does.
func (l *Loader) LoadReader(r io.Reader, name string) (*tech.Technology, error) {
	start := time.Now()
	t, err := Decode(r, name, l.options()...)
	return l.finish(name, start, t, err)
}

func (l *Loader) finish(location string, start time.Time, t *tech.Technology, err error) (*tech.Technology, error) {
	if err != nil {
		report := newReport(location, err)
		l.logger().Error(report.Title, "location", location, "error", err)
		if l.Reporter != nil {
			l.Reporter.ShowError(report.Title, report.Message)
		}
		return nil, report
	}
	l.logger().Debug("loaded technology", "location", location, "technology", t.Name, "elapsed", time.Since(start))
	return t, nil
}

func (l *Loader) options() []Option {
	return append([]Option{WithLogger(l.logger())}, l.Options...)
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loader) load(ctx context.Context, location string) (*tech.Technology, error) {
	rc, err := l.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Decode(rc, location, l.options()...)
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path; a one-letter scheme is a Windows drive.
		return os.Open(location)
	}

	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch technology: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch technology: %s", resp.Status)
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("unsupported location scheme %q", u.Scheme)
}

const (
	ParseErrorTitle = "Error parsing Xml technology"
	LoadErrorTitle  = "Error loading Xml technology"
)

func newReport(location string, err error) *Report {
	var sve *SchemaValidationError
	if errors.As(err, &sve) {
		msg := fmt.Sprintf("%s:\n%s\n Line %d column %d of %s", ParseErrorTitle, sve.Msg, sve.Line, sve.Column, location)
		msg = strings.ReplaceAll(msg, `"`+Namespace+`":`, "")
		return &Report{Title: ParseErrorTitle, Message: msg, Err: err}
	}
	msg := fmt.Sprintf("%s %s :\n%v\n", LoadErrorTitle, location, err)
	return &Report{Title: LoadErrorTitle, Message: msg, Err: err}
}
