package cos

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strings"
	"time"
)

// signValidity XML API 签名有效期
const signValidity = 600 * time.Second

// signedHeaders 参与签名的请求头（小写）
var signedHeaders = map[string]bool{
	"host":           true,
	"content-type":   true,
	"content-length": true,
}

// Signer 对象存储 XML API 请求签名
type Signer struct {
	secretID  string
	secretKey string
}

// NewSigner 创建签名器
func NewSigner(secretID, secretKey string) *Signer {
	return &Signer{secretID: secretID, secretKey: secretKey}
}

// Authorization 计算 Authorization 请求头的值
//
//	keyTime      = "{now};{now+600}"
//	signKey      = hex(HMAC-SHA1(secretKey, keyTime))
//	httpString   = "{method}\n{/key}\n\n{headerString}\n"
//	stringToSign = "sha1\n{keyTime}\n{sha1hex(httpString)}\n"
//	signature    = hex(HMAC-SHA1(signKey, stringToSign))
func (s *Signer) Authorization(method, key string, headers map[string]string, now time.Time) string {
	start := now.Unix()
	keyTime := fmt.Sprintf("%d;%d", start, start+int64(signValidity/time.Second))

	signKey := hmacSHA1Hex([]byte(s.secretKey), keyTime)

	headerString, headerList := canonicalHeaders(headers)
	uriPath := key
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	httpString := strings.ToLower(method) + "\n" + uriPath + "\n\n" + headerString + "\n"

	httpHash := sha1.Sum([]byte(httpString))
	stringToSign := "sha1\n" + keyTime + "\n" + hex.EncodeToString(httpHash[:]) + "\n"

	signature := hmacSHA1Hex([]byte(signKey), stringToSign)

	return "q-sign-algorithm=sha1" +
		"&q-ak=" + s.secretID +
		"&q-sign-time=" + keyTime +
		"&q-key-time=" + keyTime +
		"&q-header-list=" + headerList +
		"&q-url-param-list=" +
		"&q-signature=" + signature
}

// canonicalHeaders 过滤、排序并编码参与签名的请求头
func canonicalHeaders(headers map[string]string) (headerString, headerList string) {
	keys := make([]string, 0, len(headers))
	values := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if !signedHeaders[lk] {
			continue
		}
		keys = append(keys, lk)
		values[lk] = v
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + uriEncode(values[k])
	}
	return strings.Join(pairs, "&"), strings.Join(keys, ";")
}

// uriEncode RFC 3986 百分号编码，空格编码为 %20
func uriEncode(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func hmacSHA1Hex(key []byte, msg string) string {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ── CDN 鉴权 URL（TypeA） ──

// CDNSigner 生成 CDN TypeA 鉴权 URL
// sign = {timestamp}-{rand}-{uid}-md5("{uri}-{timestamp}-{rand}-{uid}-{authKey}")
type CDNSigner struct {
	domain  string
	authKey string
	ttl     time.Duration
	rand    func() string
}

// NewCDNSigner 创建 CDN 签名器，ttl <= 0 时使用 1 小时
func NewCDNSigner(domain, authKey string, ttl time.Duration) *CDNSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CDNSigner{
		domain:  strings.TrimRight(domain, "/"),
		authKey: authKey,
		ttl:     ttl,
		rand:    randomToken,
	}
}

// SignedURL 生成带时效的访问地址
func (s *CDNSigner) SignedURL(key string, now time.Time) string {
	timestamp := now.Add(s.ttl).Unix()
	rnd := s.rand()
	uid := "0"
	uri := key
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}

	signStr := fmt.Sprintf("%s-%d-%s-%s-%s", uri, timestamp, rnd, uid, s.authKey)
	sum := md5.Sum([]byte(signStr))

	return fmt.Sprintf("%s%s?sign=%d-%s-%s-%s", s.domain, uri, timestamp, rnd, uid, hex.EncodeToString(sum[:]))
}

const randAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomToken 8 位小写字母数字随机串
func randomToken() string {
	b := make([]byte, 8)
	max := big.NewInt(int64(len(randAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = randAlphabet[i]
			continue
		}
		b[i] = randAlphabet[n.Int64()]
	}
	return string(b)
}
