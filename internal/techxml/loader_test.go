package techxml

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	titles   []string
	messages []string
}

func (r *recordingReporter) ShowError(title, message string) {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoader_File(t *testing.T) {
	rep := &recordingReporter{}
	l := NewLoader(rep, quietLogger())

	tc, err := l.Load(context.Background(), "testdata/demo.xml")
	require.NoError(t, err)
	assert.Equal(t, "demo", tc.Name)
	assert.Empty(t, rep.titles)

	abs, err := filepath.Abs("testdata/demo.xml")
	require.NoError(t, err)
	tc, err = l.Load(context.Background(), "file://"+filepath.ToSlash(abs))
	require.NoError(t, err)
	assert.Equal(t, "demo", tc.Name)
}

func TestLoader_HTTP(t *testing.T) {
	data, err := os.ReadFile("testdata/demo.xml")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write(data)
	}))
	defer srv.Close()

	rep := &recordingReporter{}
	l := NewLoader(rep, quietLogger())
	l.Client = srv.Client()

	tc, err := l.Load(context.Background(), srv.URL+"/demo.xml")
	require.NoError(t, err)
	assert.Len(t, tc.Nodes, 3)

	_, err = l.Load(context.Background(), srv.URL+"/missing.xml")
	var report *Report
	require.ErrorAs(t, err, &report)
	assert.Equal(t, LoadErrorTitle, report.Title)
	assert.Contains(t, report.Message, "404")
	require.Len(t, rep.titles, 1)
}

func TestLoader_ParseErrorReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc(`    <layer name="M" fun="METAL1" color="red"/>`)), 0o644))

	rep := &recordingReporter{}
	_, err := NewLoader(rep, quietLogger()).Load(context.Background(), path)

	var report *Report
	require.ErrorAs(t, err, &report)
	assert.Equal(t, ParseErrorTitle, report.Title)
	assert.Regexp(t, `^Error parsing Xml technology:\n.*color.*\n Line 9 column \d+ of `+regexp.QuoteMeta(path)+`$`, report.Message)
	assert.NotContains(t, report.Message, `"`+Namespace+`":`)

	var sve *SchemaValidationError
	assert.ErrorAs(t, err, &sve)
	require.Len(t, rep.messages, 1)
	assert.Equal(t, report.Message, rep.messages[0])
}

func TestLoader_LoadErrorReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc(`    <layer name="M" fun="METAL1"/>
    <layer name="M" fun="METAL1"/>`)), 0o644))

	_, err := NewLoader(nil, quietLogger()).Load(context.Background(), path)

	var report *Report
	require.ErrorAs(t, err, &report)
	assert.Equal(t, LoadErrorTitle, report.Title)
	assert.Equal(t, "Error loading Xml technology "+path+" :\n"+report.Err.Error()+"\n", report.Message)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(ReporterFunc(func(string, string) {}), quietLogger()).
		Load(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	var report *Report
	require.ErrorAs(t, err, &report)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_LoadReader(t *testing.T) {
	f, err := os.Open("testdata/demo.xml")
	require.NoError(t, err)
	defer f.Close()

	rep := &recordingReporter{}
	l := NewLoader(rep, quietLogger())
	tc, err := l.LoadReader(f, "demo.xml")
	require.NoError(t, err)
	assert.Equal(t, "demo", tc.Name)

	_, err = l.LoadReader(strings.NewReader("<technology"), "broken.xml")
	var report *Report
	require.ErrorAs(t, err, &report)
	assert.Contains(t, report.Message, "broken.xml")
	assert.Len(t, rep.titles, 1)
}
