// Package sink implements the downstream Elasticsearch-shaped adapter
// (C8): declaring an index mapping derived from a typelattice.Type and
// bulk-submitting cast documents, over raw net/http rather than a client
// SDK (spec §4.8) — the teacher's elasticsearch_sink.go imports
// github.com/elastic/go-elasticsearch/v8, a dependency its own go.mod
// never declares, so that SDK is not carried forward here; see DESIGN.md.
// Request shape is adapted from the teacher's internal/sinks HTTP sinks
// (loki_sink.go/splunk_sink.go), which hand-build requests with net/http.
// HTTPSink itself sends each request once; retrying a retryable bulk
// failure is left to the caller (internal/workerpool retries it with no
// attempt limit).
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"ulp/pkg/errors"
	"ulp/pkg/typelattice"
	"ulp/pkg/value"
)

// gzipThreshold is the body-size knob above which bulk/mapping request
// bodies are gzip-compressed, mirroring the teacher's
// pkg/compression.HTTPCompressor threshold.
const gzipThreshold = 8 * 1024

// Document is one record bound for a specific index, as produced by the
// worker pool's ShipData handler.
type Document struct {
	Index  string
	Record value.Value
}

// Sink is the interface internal/workerpool depends on, so tests can swap
// in a fake rather than dial a real Elasticsearch.
type Sink interface {
	DeclareMapping(ctx context.Context, indexName string, t typelattice.Type) error
	BulkSubmit(ctx context.Context, docs []Document) error
}

// rejectedExecutionMarker is the substring of an Elasticsearch bulk error
// body that spec §4.8 names as the sole retryable condition.
const rejectedExecutionMarker = "es_rejected_execution_exception"

// indexCharsToStrip are the characters spec §4.8 removes outright from an
// index name (deleted, not replaced), matching the original source's chained
// .replace(x, "") calls.
const indexCharsToStrip = `:"*+/\|?#%><`

// SanitizeIndexName lowercases the name, deletes the characters Elasticsearch
// index names reject, replaces spaces with "_", then strips leading "_", ".",
// "-" repeatedly, per spec §4.8.
func SanitizeIndexName(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	for _, r := range lower {
		switch {
		case strings.ContainsRune(indexCharsToStrip, r):
			continue
		case r == ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	clean := strings.TrimLeft(b.String(), "_.-")
	if clean == "" {
		clean = "ulp-unnamed"
	}
	return clean
}

// HTTPSink is the concrete Sink backed by a raw HTTP client against a
// list of Elasticsearch-compatible hosts with HTTP basic auth, the same
// credential shape the teacher's config layer already carries.
type HTTPSink struct {
	Hosts    []string
	Username string
	Password string
	Client   *http.Client
	GzipBody bool
}

// NewHTTPSink constructs an HTTPSink with gzip enabled and a plain
// http.Client that sets no request timeout of its own.
func NewHTTPSink(hosts []string, username, password string) *HTTPSink {
	return &HTTPSink{
		Hosts:    hosts,
		Username: username,
		Password: password,
		Client:   &http.Client{},
		GzipBody: true,
	}
}

// mappingDoc is the document body PUT to /<sanitized index>, derived from
// a typelattice.Type (spec §4.8).
type mappingDoc struct {
	Properties map[string]esField `json:"properties"`
}

type esField struct {
	Type       string             `json:"type"`
	NullValue  string             `json:"null_value,omitempty"`
	Format     string             `json:"format,omitempty"`
	Fields     map[string]esField `json:"fields,omitempty"`
	IgnoreAbove int               `json:"ignore_above,omitempty"`
	Properties map[string]esField `json:"properties,omitempty"`
}

// dateFieldFormat is the fixed format union spec §4.8 names for a Date
// leaf's mapping entry.
const dateFieldFormat = "strict_date_optional_time||epoch_millis||yyyy-MM-dd'T'HH:mm:ss.SSSSSSX"

// toESField translates one Type leaf/branch into its downstream schema
// document entry using the fixed per-kind templates of spec §4.8: every
// leaf kind maps to one literal field shape, Object recurses into
// "properties", and List is always treated as text/keyword regardless of
// its child type (spec §4.8 explicitly calls this out as a simplification,
// not an oversight).
func toESField(t typelattice.Type) esField {
	switch t.Kind {
	case typelattice.KindNull:
		return esField{Type: "keyword", NullValue: "NULL"}
	case typelattice.KindBool:
		return esField{Type: "boolean"}
	case typelattice.KindInt:
		return esField{Type: "long"}
	case typelattice.KindFloat:
		return esField{Type: "double"}
	case typelattice.KindIPv4, typelattice.KindIPv6:
		return esField{Type: "ip"}
	case typelattice.KindDate:
		return esField{Type: "date", Format: dateFieldFormat}
	case typelattice.KindStr, typelattice.KindList:
		return esField{
			Type:        "text",
			Fields:      map[string]esField{"keyword": {Type: "keyword", IgnoreAbove: 256}},
		}
	case typelattice.KindObject:
		props := make(map[string]esField, len(t.Obj))
		for k, v := range t.Obj {
			props[k] = toESField(v)
		}
		return esField{Type: "object", Properties: props}
	default:
		return esField{Type: "keyword"}
	}
}

// DeclareMapping PUTs indexName's mapping document derived from t to the
// first configured host, per spec §4.8; the other hosts are never
// contacted. A transport failure is returned as errors.KindSinkTransient;
// any non-2xx response is returned as errors.KindSinkPermanent.
func (s *HTTPSink) DeclareMapping(ctx context.Context, indexName string, t typelattice.Type) error {
	clean := SanitizeIndexName(indexName)
	doc := mappingDoc{Properties: map[string]esField{}}
	if t.Kind == typelattice.KindObject {
		for k, v := range t.Obj {
			doc.Properties[k] = toESField(v)
		}
	} else {
		doc.Properties["value"] = toESField(t)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.New(errors.KindSinkPermanent, "sink.HTTPSink", "DeclareMapping", err)
	}

	return s.put(ctx, fmt.Sprintf("/%s", clean), body)
}

// bulkItemError is the per-item error shape nested in an Elasticsearch
// bulk response.
type bulkItemError struct {
	Reason string `json:"reason"`
}

type bulkItem struct {
	Index *struct {
		Error *bulkItemError `json:"error"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool       `json:"errors"`
	Items  []bulkItem `json:"items"`
}

// anyRejected reports whether any bulk item's error reason is the
// retryable es_rejected_execution_exception, per spec §4.8.
func (r bulkResponse) anyRejected() bool {
	for _, it := range r.Items {
		if it.Index != nil && it.Index.Error != nil && it.Index.Error.Reason == rejectedExecutionMarker {
			return true
		}
	}
	return false
}

// BulkSubmit renders docs as a newline-delimited Elasticsearch bulk body
// (one action line carrying a fresh uuid4 _id, one source line, per
// document) and POSTs it to /_bulk?refresh=wait_for, per spec §4.8. The
// bulk endpoint normally answers 200 even when individual items failed,
// so the retry decision is driven by the parsed response body, not the
// HTTP status: if any item's error reason is es_rejected_execution_exception,
// the caller should retry with the same body after a 1s pause (spec §4.8);
// any other per-item failure is ignored and BulkSubmit returns nil.
func (s *HTTPSink) BulkSubmit(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, d := range docs {
		action := map[string]map[string]string{
			"index": {"_index": SanitizeIndexName(d.Index), "_id": uuid.NewString()},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return errors.New(errors.KindSinkPermanent, "sink.HTTPSink", "BulkSubmit", err)
		}
		srcLine, err := d.Record.MarshalJSON()
		if err != nil {
			return errors.New(errors.KindSinkPermanent, "sink.HTTPSink", "BulkSubmit", err)
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(srcLine)
		buf.WriteByte('\n')
	}

	status, respBody, err := s.send(ctx, http.MethodPost, "/_bulk?refresh=wait_for", "application/x-ndjson", buf.Bytes())
	if err != nil {
		return errors.New(errors.KindSinkTransient, "sink.HTTPSink", "BulkSubmit", err)
	}
	if status < 200 || status >= 300 {
		if strings.Contains(string(respBody), rejectedExecutionMarker) {
			return errors.New(errors.KindSinkTransient, "sink.HTTPSink", "BulkSubmit",
				fmt.Errorf("status %d: %s", status, respBody))
		}
		return errors.New(errors.KindSinkPermanent, "sink.HTTPSink", "BulkSubmit",
			fmt.Errorf("status %d: %s", status, respBody))
	}

	var parsed bulkResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Errors && parsed.anyRejected() {
		return errors.New(errors.KindSinkTransient, "sink.HTTPSink", "BulkSubmit",
			fmt.Errorf("bulk response contained %s", rejectedExecutionMarker))
	}
	return nil
}

func (s *HTTPSink) put(ctx context.Context, path string, body []byte) error {
	status, respBody, err := s.send(ctx, http.MethodPut, path, "application/json", body)
	if err != nil {
		return errors.New(errors.KindSinkTransient, "sink.HTTPSink", "DeclareMapping", err)
	}
	if status < 200 || status >= 300 {
		// Non-2xx on mapping declaration is log-only per spec §4.8; the
		// caller (internal/workerpool) logs this and moves on.
		return errors.New(errors.KindSinkPermanent, "sink.HTTPSink", "DeclareMapping",
			fmt.Errorf("status %d: %s", status, respBody))
	}
	return nil
}

// send issues one HTTP request and returns its status code and raw body.
// Only transport-level failures (dial/timeout/context) are returned as
// errors; a non-2xx HTTP response is handed back to the caller to
// interpret, since put and BulkSubmit disagree about what a failure
// response means (log-only vs. conditionally retryable).
func (s *HTTPSink) send(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	if len(s.Hosts) == 0 {
		return 0, nil, fmt.Errorf("no hosts configured")
	}
	host := s.Hosts[0]

	payload := body
	contentEncoding := ""
	if s.GzipBody && len(body) > gzipThreshold {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		if _, err := w.Write(body); err != nil {
			return 0, nil, err
		}
		if err := w.Close(); err != nil {
			return 0, nil, err
		}
		payload = gz.Bytes()
		contentEncoding = "gzip"
	}

	req, err := http.NewRequestWithContext(ctx, method, host+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	if s.Username != "" {
		req.SetBasicAuth(s.Username, s.Password)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, nil
}
