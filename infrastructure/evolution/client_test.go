package evolution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "token", "inst")
	assert.ErrorIs(t, err, ErrMissingConfig)

	_, err = NewClient("http://gw.local", "", "inst")
	assert.ErrorIs(t, err, ErrMissingConfig)

	_, err = NewClient("http://gw.local", "token", " ")
	assert.ErrorIs(t, err, ErrMissingConfig)

	c, err := NewClient("http://gw.local/", "token", "inst")
	require.NoError(t, err)
	assert.Equal(t, "inst", c.Instance())
}

func TestSendTextReturnsKeyID(t *testing.T) {
	var gotBody map[string]any
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"key": map[string]any{"id": "GW_MSG_1"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "secret", "inst1")
	require.NoError(t, err)

	id, err := c.SendText(context.Background(), "+55 11 99999-9999", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "GW_MSG_1", id)
	assert.Equal(t, "/message/sendText/inst1", gotPath)
	assert.Equal(t, "5511999999999", gotBody["number"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestSendTextMessageIDFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "ALT_ID"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	id, err := c.SendText(context.Background(), "551199", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "ALT_ID", id)
}

func TestSendTextReplyContext(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "X"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	_, err := c.SendText(context.Background(), "551199", "hi", "QUOTED1")
	require.NoError(t, err)

	// All reply encodings are present at once.
	assert.Equal(t, "QUOTED1", gotBody["quotedMsgId"])
	ctxInfo, _ := gotBody["contextInfo"].(map[string]any)
	require.NotNil(t, ctxInfo)
	assert.Equal(t, "QUOTED1", ctxInfo["stanzaId"])
	quoted, _ := gotBody["quoted"].(map[string]any)
	require.NotNil(t, quoted)
}

func TestSendMediaFileBecomesDocument(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"messageId": "M1"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	_, err := c.SendMedia(context.Background(), "551199", "file", "http://media/x.pdf", "cap", "x.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "document", gotBody["mediatype"])
}

func TestSendMessageMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	_, err := c.SendText(context.Background(), "551199", "hi", "")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDownloadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	data, err := c.DownloadMedia(context.Background(), srv.URL+"/media/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data)
}

func TestDownloadMediaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	_, err := c.DownloadMedia(context.Background(), srv.URL+"/media/missing")
	assert.Error(t, err)
}

func TestCreateInstanceSubscribesWebhook(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/create", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"instance": map[string]any{"instanceName": "inst1"}})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "secret", "inst1")
	_, err := c.CreateInstance(context.Background(), CreateInstanceRequest{
		PhoneNumber: "+5511999999999",
		WebhookURL:  "https://bridge.local/webhooks/evolution",
	})
	require.NoError(t, err)

	assert.Equal(t, "inst1", gotBody["instanceName"])
	assert.Equal(t, "5511999999999", gotBody["number"])
	assert.Equal(t, "WHATSAPP-BAILEYS", gotBody["integration"])
	webhook, _ := gotBody["webhook"].(map[string]any)
	require.NotNil(t, webhook)
	assert.Equal(t, true, webhook["base64"])
	events, _ := webhook["events"].([]any)
	assert.NotEmpty(t, events)
}
