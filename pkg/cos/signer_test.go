package cos

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAuthorization(t *testing.T, auth string) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for _, part := range strings.Split(auth, "&") {
		kv := strings.SplitN(part, "=", 2)
		require.Len(t, kv, 2, "字段格式错误: %s", part)
		fields[kv[0]] = kv[1]
	}
	return fields
}

func TestSigner_Authorization_Fields(t *testing.T) {
	s := NewSigner("AKIDtest", "secret")
	now := time.Unix(1700000000, 0)

	auth := s.Authorization("PUT", "dida-master/u1/a.json", map[string]string{
		"Host":           "bucket.cos.ap-guangzhou.myqcloud.com",
		"Content-Type":   "application/json; charset=utf-8",
		"Content-Length": "42",
		"X-Custom":       "ignored",
	}, now)

	f := parseAuthorization(t, auth)
	assert.Equal(t, "sha1", f["q-sign-algorithm"])
	assert.Equal(t, "AKIDtest", f["q-ak"])
	assert.Equal(t, "1700000000;1700000600", f["q-sign-time"])
	assert.Equal(t, f["q-sign-time"], f["q-key-time"])
	assert.Equal(t, "content-length;content-type;host", f["q-header-list"])
	assert.Equal(t, "", f["q-url-param-list"])
	assert.Len(t, f["q-signature"], 40)
	assert.True(t, strings.HasPrefix(auth, "q-sign-algorithm=sha1&q-ak="))
}

func TestSigner_Authorization_Signature(t *testing.T) {
	s := NewSigner("AKIDtest", "secret")
	now := time.Unix(1700000000, 0)
	headers := map[string]string{
		"host":         "b.cos.r.myqcloud.com",
		"content-type": "application/json; charset=utf-8",
	}

	f := parseAuthorization(t, s.Authorization("GET", "k.json", headers, now))

	keyTime := "1700000000;1700000600"
	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte(keyTime))
	signKey := hex.EncodeToString(mac.Sum(nil))

	httpString := "get\n/k.json\n\ncontent-type=application%2Fjson%3B%20charset%3Dutf-8&host=b.cos.r.myqcloud.com\n"
	h := sha1.Sum([]byte(httpString))
	stringToSign := "sha1\n" + keyTime + "\n" + hex.EncodeToString(h[:]) + "\n"

	mac2 := hmac.New(sha1.New, []byte(signKey))
	mac2.Write([]byte(stringToSign))

	assert.Equal(t, hex.EncodeToString(mac2.Sum(nil)), f["q-signature"])
}

func TestSigner_Authorization_PinnedVector(t *testing.T) {
	s := NewSigner("AKIDtest", "secret")
	headers := map[string]string{
		"host":         "b.cos.r.myqcloud.com",
		"content-type": "application/json; charset=utf-8",
	}

	f := parseAuthorization(t, s.Authorization("GET", "k.json", headers, time.Unix(1700000000, 0)))

	// 第二次 HMAC 以 signKey 的十六进制字符串为密钥，而不是其原始字节
	assert.Equal(t, "5b5099c674221a3d9399382baae4a994c76080ec", f["q-signature"])
	assert.NotEqual(t, "1674e754baec6cbda3185ee762f5f737cc254490", f["q-signature"])
}

func TestSigner_HeaderCaseInsensitive(t *testing.T) {
	s := NewSigner("id", "key")
	now := time.Unix(1700000000, 0)

	a := s.Authorization("GET", "/x", map[string]string{"HOST": "h"}, now)
	b := s.Authorization("get", "x", map[string]string{"host": "h"}, now)
	assert.Equal(t, a, b, "方法与请求头大小写、key 前导斜杠不应影响签名")
}

func TestCDNSigner_SignedURL(t *testing.T) {
	s := NewCDNSigner("https://cdn.example.com/", "authkey", time.Hour)
	s.rand = func() string { return "abcd1234" }
	now := time.Unix(1700000000, 0)

	got := s.SignedURL("dida-master/u1/daily-notes/2026-01-01_r1.json", now)

	uri := "/dida-master/u1/daily-notes/2026-01-01_r1.json"
	ts := int64(1700003600)
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%d-abcd1234-0-authkey", uri, ts)))
	want := fmt.Sprintf("https://cdn.example.com%s?sign=%d-abcd1234-0-%s", uri, ts, hex.EncodeToString(sum[:]))

	assert.Equal(t, want, got)
}

func TestCDNSigner_DefaultTTL(t *testing.T) {
	s := NewCDNSigner("https://cdn.example.com", "k", 0)
	assert.Equal(t, time.Hour, s.ttl)
}

func TestRandomToken(t *testing.T) {
	tok := randomToken()
	require.Len(t, tok, 8)
	for _, r := range tok {
		assert.Contains(t, randAlphabet, string(r))
	}
}

func TestKeys_IncludeRecordID(t *testing.T) {
	a := DailyNoteKey("u1", "2026-01-01", "r1")
	b := DailyNoteKey("u1", "2026-01-01", "r2")

	assert.Equal(t, "dida-master/u1/daily-notes/2026-01-01_r1.json", a)
	assert.NotEqual(t, a, b, "同用户同日期的两条记录 key 必须不同")
	assert.Equal(t, "dida-master/u1/weekly-reports/2026-01-01_2026-01-07_r1.json",
		WeeklyReportKey("u1", "2026-01-01", "2026-01-07", "r1"))
}
