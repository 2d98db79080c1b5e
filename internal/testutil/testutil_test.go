package testutil

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// recordingT captures failures so the failure paths can be checked without
// failing the real test.
type recordingT struct {
	testing.TB
	failed bool
	fatal  bool
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) { r.failed = true }

func (r *recordingT) Fatal(args ...interface{}) {
	r.failed, r.fatal = true, true
}

func (r *recordingT) Fatalf(format string, args ...interface{}) {
	r.failed, r.fatal = true, true
}

func TestAssertStatusCode(t *testing.T) {
	rt := &recordingT{}
	AssertStatusCode(rt, http.StatusOK, http.StatusOK)
	if rt.failed {
		t.Error("expected no failure for matching status codes")
	}
	AssertStatusCode(rt, http.StatusOK, http.StatusBadRequest)
	if !rt.failed || rt.fatal {
		t.Error("expected a non-fatal failure for mismatched status codes")
	}
}

func TestAssertNoError(t *testing.T) {
	rt := &recordingT{}
	AssertNoError(rt, nil)
	if rt.failed {
		t.Error("expected no failure for nil error")
	}
	AssertNoError(rt, errors.New("boom"))
	if !rt.fatal {
		t.Error("expected a fatal failure for a non-nil error")
	}
}

func TestAssertError(t *testing.T) {
	rt := &recordingT{}
	AssertError(rt, errors.New("boom"))
	if rt.failed {
		t.Error("expected no failure when error is present")
	}
	AssertError(rt, nil)
	if !rt.fatal {
		t.Error("expected a fatal failure for a nil error")
	}
}

func TestServe_AndContentType(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(r.Method + " " + r.URL.Path))
	})
	w := Serve(h, http.MethodPost, "/api/test")
	AssertStatusCode(t, w.Code, http.StatusTeapot)
	if got := w.Body.String(); got != "POST /api/test" {
		t.Errorf("body = %q", got)
	}

	AssertContentType(t, w, "text/plain")
	rt := &recordingT{}
	AssertContentType(rt, w, "application/json")
	if !rt.failed {
		t.Error("expected failure for wrong content type")
	}
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, filepath.Join("nested", "a.yaml"), "name: x\n")
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if string(data) != "name: x\n" {
		t.Errorf("content = %q", data)
	}
}
