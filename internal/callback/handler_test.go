package callback

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airsync/internal/wpimport"
)

type fakeCompleter struct {
	calls []wpimport.Completion
	ids   []string
	err   error
}

func (f *fakeCompleter) Complete(importID string, comp wpimport.Completion) error {
	f.ids = append(f.ids, importID)
	f.calls = append(f.calls, comp)
	return f.err
}

func post(h *Handler, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRejectsBadSecret(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler("hunter2", "31", completer, nil)

	rec := post(h, "/callback?secret=wrong", `{"import_id": "31", "end_time": 1700000600}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, completer.calls, "payload must not be processed before auth")

	rec = post(h, "/callback", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectsWhenNoSecretConfigured(t *testing.T) {
	h := NewHandler("", "31", &fakeCompleter{}, nil)
	rec := post(h, "/callback?secret=", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetShowsLiveness(t *testing.T) {
	h := NewHandler("hunter2", "31", &fakeCompleter{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active")
}

func TestCompletionRecorded(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler("hunter2", "31", completer, nil)

	rec := post(h, "/callback?secret=hunter2", `{
		"import_id": "31",
		"start_time": 1700000000,
		"end_time": 1700000600,
		"posts_created": 4,
		"posts_updated": 2,
		"posts_deleted": 1,
		"posts_skipped": 7
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Processed successfully")
	require.Len(t, completer.calls, 1)
	assert.Equal(t, "31", completer.ids[0])
	assert.Equal(t, wpimport.Completion{
		Created: 4, Updated: 2, Deleted: 1, Skipped: 7,
		StartTime: 1700000000, EndTime: 1700000600,
	}, completer.calls[0])
}

func TestNumericImportIDAccepted(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler("hunter2", "31", completer, nil)

	rec := post(h, "/callback?secret=hunter2", `{"import_id": 31, "end_time": 1700000600}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, completer.ids, 1)
	assert.Equal(t, "31", completer.ids[0])
}

// end_time is the sole completion signal; its absence means the callback
// is acknowledged but nothing is recorded.
func TestNoEndTimeIsNotCompletion(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler("hunter2", "31", completer, nil)

	rec := post(h, "/callback?secret=hunter2", `{"import_id": "31", "posts_created": 4}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, completer.calls)
}

func TestMalformedPayloadsAnswer200(t *testing.T) {
	completer := &fakeCompleter{}
	h := NewHandler("hunter2", "31", completer, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No data received"},
		{"bad json", "{not json", "Could not parse JSON"},
		{"missing id", `{"end_time": 1700000600}`, "Import ID missing"},
		{"unknown id", `{"import_id": "99", "end_time": 1700000600}`, "Unknown Import ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h, "/callback?secret=hunter2", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
	assert.Empty(t, completer.calls)
}

// Processing failures are reported in the body, never as an error status,
// so the remote side does not retry a callback we already received.
func TestProcessingErrorStillAnswers200(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("cache write failed")}
	h := NewHandler("hunter2", "31", completer, nil)

	rec := post(h, "/callback?secret=hunter2", `{"import_id": "31", "end_time": 1700000600}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Processed with errors")
	assert.Contains(t, rec.Body.String(), "cache write failed")
}
