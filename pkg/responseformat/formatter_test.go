package responseformat

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type seriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestWriteResponseJSONDefault(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sites/harvard/series", nil)

	err := f.WriteResponse(w, req, seriesPoint{Date: "2023-06-10", Value: 0.82}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var got seriesPoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "2023-06-10", got.Date)
	assert.Equal(t, 0.82, got.Value)
}

func TestWriteResponseMsgPack(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sites/harvard/series?format=msgpack", nil)

	err := f.WriteResponse(w, req, seriesPoint{Date: "2023-06-10", Value: 0.82}, nil)
	require.NoError(t, err)

	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))

	// MessagePack encoding should honor json struct tags so clients see the
	// same field names in both formats.
	dec := msgpack.NewDecoder(w.Body)
	dec.SetCustomStructTag("json")
	var got seriesPoint
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, "2023-06-10", got.Date)
	assert.Equal(t, 0.82, got.Value)
}

func TestWriteResponseExtraHeaders(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/products", nil)

	err := f.WriteResponse(w, req, map[string]string{"ok": "yes"}, map[string]string{
		"Cache-Control": "max-age=300",
	})
	require.NoError(t, err)
	assert.Equal(t, "max-age=300", w.Header().Get("Cache-Control"))
}

func TestWriteErrorJSON(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sites/nowhere/series", nil)

	f.WriteError(w, req, 404, "site not found")

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "site not found", body["error"])
}

func TestWriteErrorMsgPack(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sites/nowhere/series?format=msgpack", nil)

	f.WriteError(w, req, 400, "invalid span")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/x-msgpack", w.Header().Get("Content-Type"))

	var body map[string]string
	dec := msgpack.NewDecoder(w.Body)
	dec.SetCustomStructTag("json")
	require.NoError(t, dec.Decode(&body))
	assert.Equal(t, "invalid span", body["error"])
}
