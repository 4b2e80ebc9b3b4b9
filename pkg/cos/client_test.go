package cos

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Redwinam/dida-master/config"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// fakeStore 内存对象存储，校验签名头是否存在
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	auths   []string
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	auth := r.Header.Get("Authorization")
	f.auths = append(f.auths, auth)
	if !strings.HasPrefix(auth, "q-sign-algorithm=sha1&") {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<Error><Code>AccessDenied</Code></Error>"))
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<Error><Code>NoSuchKey</Code></Error>"))
			return
		}
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeStore) {
	t.Helper()
	store := &fakeStore{objects: map[string][]byte{}}
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	c := NewClient(&config.COSConfig{
		SecretID:  "id",
		SecretKey: "key",
		Bucket:    "bucket-1250000000",
		Region:    "ap-guangzhou",
		Endpoint:  srv.URL,
	})
	return c, store
}

func TestClient_RecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *StoredRecord
	}{
		{"正文", &StoredRecord{Title: "2026年1月1日", Content: "今日计划\n- 写代码", CreatedAt: "2026-01-01T08:00:00Z"}},
		{"空正文", &StoredRecord{Title: "2026年1月5日", Content: "", CreatedAt: "2026-01-05T08:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestClient(t)
			ctx := context.Background()
			key := DailyNoteKey("u1", "2026-01-01", "r1")

			require.NoError(t, c.UploadRecord(ctx, key, tt.rec))
			assert.Contains(t, store.objects, key)

			got, err := c.FetchRecord(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, tt.rec, got)
		})
	}
}

func TestClient_FetchRecord_PlainText(t *testing.T) {
	c, store := newTestClient(t)
	store.objects["k.json"] = []byte("not json")

	got, err := c.FetchRecord(context.Background(), "k.json")
	require.NoError(t, err)
	assert.Equal(t, "not json", got.Content)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Fetch(context.Background(), "missing.json")
	require.Error(t, err)

	var se *pkgerrors.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "NoSuchKey")
	assert.True(t, errors.Is(err, pkgerrors.ErrUpstream))
}

func TestClient_Delete(t *testing.T) {
	c, store := newTestClient(t)
	store.objects["a.json"] = []byte("{}")

	require.NoError(t, c.Delete(context.Background(), "a.json"))
	assert.NotContains(t, store.objects, "a.json")
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(&config.COSConfig{})
	assert.False(t, c.Enabled())

	err := c.Upload(context.Background(), "k", []byte("{}"))
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestClient_SignedURL(t *testing.T) {
	c := NewClient(&config.COSConfig{CDNDomain: "https://cdn.example.com", CDNAuthKey: "k", CDNAuthTTL: 60})
	u, err := c.SignedURL("a/b.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://cdn.example.com/a/b.json?sign="))

	_, err = NewClient(&config.COSConfig{}).SignedURL("a")
	assert.True(t, errors.Is(err, ErrCDNNotConfigured))
}

func TestClient_DefaultHost(t *testing.T) {
	c := NewClient(&config.COSConfig{Bucket: "b-1", Region: "ap-shanghai"})
	assert.Equal(t, "b-1.cos.ap-shanghai.myqcloud.com", c.host)
	assert.Equal(t, "https://b-1.cos.ap-shanghai.myqcloud.com", c.baseURL)
}
