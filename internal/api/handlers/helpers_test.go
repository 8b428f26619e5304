package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
)

type formFile struct {
	field       string
	name        string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		ct := f.contentType
		if ct == "" {
			ct = "text/csv"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(f.body))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var testInstitution = ofx.Institution{
	BankID:      "123456789",
	AccountID:   "000111222",
	AccountType: "CHECKING",
	Org:         "Example Bank",
	FID:         "10898",
	IntuitBID:   "10898",
}

func testConverter() *pipeline.Converter {
	enc := ofx.NewEncoder(testInstitution,
		ofx.WithClock(func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }),
		ofx.WithUIDGenerator(func() string { return "uid-1" }),
	)
	return pipeline.NewConverter(extract.NewExtractor(extract.DefaultLayout(), 2024), enc)
}
