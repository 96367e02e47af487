package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5*time.Second, 5*time.Second, staticToken(token), nil)
	return client, server
}

func TestSignInNormalizesPascalCaseToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/signin", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])

		w.Write([]byte(`{"success":true,"data":{"SessionToken":"tok-123","expiresAt":"2026-09-02T00:00:00Z","user":{"id":"u1","email":"a@b.com"}}}`))
	}, "")

	session, err := client.SignIn(context.Background(), "a@b.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", session.Token)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "a@b.com", session.Email)
	assert.Equal(t, 2026, session.ExpiresAt.Year())
}

func TestSignInMissingTokenIsServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{}}`))
	}, "")

	_, err := client.SignIn(context.Background(), "a@b.com", "pw")
	assert.True(t, IsServer(err))
}

func TestListChatsThreadsCursor(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("lastKey"))

		w.Write([]byte(`{"data":{"chats":[{"chatId":"c1","Query":"hi","Answer":"hello"}],"nextPageToken":"def","metadata":{"hasMore":true,"count":1}}}`))
	}, "tok")

	page, err := client.ListChats(context.Background(), 10, "abc")
	require.NoError(t, err)
	require.Len(t, page.Chats, 1)
	assert.Equal(t, "c1", page.Chats[0].ID)
	assert.Equal(t, "hi", page.Chats[0].Query)
	assert.Equal(t, "hello", page.Chats[0].Answer)
	assert.Equal(t, "def", page.NextPageToken)
	assert.True(t, page.HasMore)
}

func TestListChatsEmptyTokenClearsHasMore(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"chats":[],"nextPageToken":"","metadata":{"hasMore":true,"count":0}}}`))
	}, "tok")

	page, err := client.ListChats(context.Background(), 10, "")
	require.NoError(t, err)
	assert.False(t, page.HasMore)
}

func TestSearchParsesSourcesAndMetrics(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"answer":"12 months","sources":[{"FileName":"warranty.pdf","chunkIndex":4,"score":0.91}],"metrics":{"totalRequestTimeMs":120.5,"cached":true,"tokensUsed":88,"resultsCount":2}}}`))
	}, "tok")

	result, err := client.Search(context.Background(), "warranty?")
	require.NoError(t, err)
	assert.Equal(t, "12 months", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "warranty.pdf", result.Sources[0].FileName)
	assert.Equal(t, 4, result.Sources[0].ChunkIndex)
	require.NotNil(t, result.Metrics)
	assert.True(t, result.Metrics.Cached)
	assert.Equal(t, 88, result.Metrics.TokensUsed)
}

func TestSearchMissingDataYieldsZeroValues(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}, "tok")

	result, err := client.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Nil(t, result.Metrics)
}

func TestListFilesNormalizesCasing(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/u1/files", r.URL.Path)
		w.Write([]byte(`{"data":[{"S3Key":"documents/a.pdf","FileName":"a.pdf"},{"s3Key":"documents/b.pdf","fileName":"b.pdf"}]}`))
	}, "tok")

	entries, err := client.ListFiles(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "documents/a.pdf", entries[0].Key)
	assert.Equal(t, "b.pdf", entries[1].FileName)
}

func TestMissingTokenIsAuthError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should never reach the server")
	}, "")

	_, err := client.ListChats(context.Background(), 10, "")
	assert.True(t, IsAuth(err))
}

func TestUnauthorizedResponseIsAuthError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"token expired"}`))
	}, "tok")

	_, err := client.Search(context.Background(), "q")
	require.True(t, IsAuth(err))
	assert.Contains(t, err.Error(), "token expired")
}

func TestServerFailureIsServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"vector store unavailable"}`))
	}, "tok")

	_, err := client.Search(context.Background(), "q")
	require.True(t, IsServer(err))
	assert.Contains(t, err.Error(), "vector store unavailable")
}

func TestUnreachableBackendIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second, time.Second, staticToken("tok"), nil)
	_, err := client.Search(context.Background(), "q")
	assert.True(t, IsNetwork(err))
}

func TestProcessPDFRejectedStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/processing/pdf", r.URL.Path)
		w.Write([]byte(`{"status":0,"message":"extraction failed"}`))
	}, "tok")

	err := client.ProcessPDF(context.Background(), "documents/x.pdf", "document_embeddings")
	require.True(t, IsServer(err))
	assert.Contains(t, err.Error(), "extraction failed")
}

func TestDeleteFileSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/s3", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "documents/x.pdf", body["key"])

		w.Write([]byte(`{"status":1,"message":"deleted"}`))
	}, "tok")

	assert.NoError(t, client.DeleteFile(context.Background(), "documents/x.pdf"))
}

func TestMetricsReport(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"performance":{"totalRequests":42},"cache":{"hitRate":0.5},"system":{"uptime":360}}}`))
	}, "tok")

	report, err := client.Metrics(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, report.Performance["totalRequests"])
	assert.EqualValues(t, 0.5, report.Cache["hitRate"])
}

func TestClearCache(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "embedding", body["type"])
		w.Write([]byte(`{}`))
	}, "tok")

	assert.NoError(t, client.ClearCache(context.Background(), "embedding"))
}
