package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Redwinam/dida-master/config"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// Calendar 日历集合
type Calendar struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Credentials 单个用户的 CalDAV 凭证
type Credentials struct {
	ServerURL string
	Username  string
	Password  string
}

// Client CalDAV 客户端（单次请求，不做重试）
type Client struct {
	base       *url.URL
	username   string
	password   string
	httpClient *http.Client
}

// NewClient 为指定用户创建客户端；ServerURL 为空时使用配置中的默认服务器
func NewClient(cfg *config.CalDAVConfig, cred Credentials) (*Client, error) {
	server := cred.ServerURL
	if server == "" {
		server = cfg.ServerURL
	}
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("无效的 CalDAV 地址 %q", server)
	}
	if cred.Username == "" || cred.Password == "" {
		return nil, fmt.Errorf("CalDAV 凭证缺失")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		base:       u,
		username:   cred.Username,
		password:   cred.Password,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// ────────────────────── 发现 ──────────────────────

const propfindPrincipal = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:current-user-principal/></d:prop></d:propfind>`

const propfindHomeSet = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav"><d:prop><c:calendar-home-set/></d:prop></d:propfind>`

const propfindCalendars = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:resourcetype/><d:displayname/></d:prop></d:propfind>`

// Calendars 发现当前用户的全部日历
func (c *Client) Calendars(ctx context.Context) ([]Calendar, error) {
	principal, err := c.findHref(ctx, c.base.String(), propfindPrincipal, func(p *prop) string {
		return p.CurrentUserPrincipal.Href
	})
	if err != nil {
		return nil, fmt.Errorf("查找用户主体失败: %w", err)
	}

	home, err := c.findHref(ctx, principal, propfindHomeSet, func(p *prop) string {
		return p.CalendarHomeSet.Href
	})
	if err != nil {
		return nil, fmt.Errorf("查找日历主目录失败: %w", err)
	}

	ms, err := c.multistatus(ctx, "PROPFIND", home, "1", propfindCalendars)
	if err != nil {
		return nil, fmt.Errorf("列出日历失败: %w", err)
	}

	var calendars []Calendar
	for _, r := range ms.Responses {
		for _, ps := range r.Propstats {
			if ps.Prop.ResourceType.Calendar == nil {
				continue
			}
			name := strings.TrimSpace(ps.Prop.DisplayName)
			href := c.resolve(r.Href)
			if name == "" {
				name = href
			}
			calendars = append(calendars, Calendar{Name: name, URL: href})
			break
		}
	}
	return calendars, nil
}

// ────────────────────── 查询 ──────────────────────

const calendarQuery = `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop><d:getetag/><c:calendar-data/></d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="%s" end="%s"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`

// Events 查询日历在 [start, end) 内的事件
func (c *Client) Events(ctx context.Context, cal Calendar, start, end time.Time, loc *time.Location) ([]Event, error) {
	body := fmt.Sprintf(calendarQuery, start.UTC().Format(icsUTCLayout), end.UTC().Format(icsUTCLayout))
	ms, err := c.multistatus(ctx, "REPORT", cal.URL, "1", body)
	if err != nil {
		return nil, fmt.Errorf("查询日历 %s 失败: %w", cal.Name, err)
	}

	var events []Event
	for _, r := range ms.Responses {
		for _, ps := range r.Propstats {
			data := strings.TrimSpace(ps.Prop.CalendarData)
			if data == "" {
				continue
			}
			parsed, err := ParseEvents(strings.NewReader(data), loc)
			if err != nil {
				continue
			}
			for i := range parsed {
				parsed[i].Calendar = cal.Name
			}
			events = append(events, parsed...)
		}
	}
	return events, nil
}

// ────────────────────── 写入 ──────────────────────

// PutEvent 在日历中创建事件，返回对象地址
func (c *Client) PutEvent(ctx context.Context, cal Calendar, ev *NewEvent) (string, error) {
	uid, data := ev.Serialize(time.Now())

	target := strings.TrimRight(cal.URL, "/") + "/" + uid + ".ics"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, strings.NewReader(data))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	req.Header.Set("If-None-Match", "*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("写入事件失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &pkgerrors.StatusError{Service: "caldav", StatusCode: resp.StatusCode, Body: string(text)}
	}
	return target, nil
}

// ────────────────────── WebDAV 基础 ──────────────────────

type multistatus struct {
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type prop struct {
	DisplayName          string       `xml:"DAV: displayname"`
	ResourceType         resourceType `xml:"DAV: resourcetype"`
	CurrentUserPrincipal hrefProp     `xml:"DAV: current-user-principal"`
	CalendarHomeSet      hrefProp     `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	CalendarData         string       `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type resourceType struct {
	Calendar *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

type hrefProp struct {
	Href string `xml:"DAV: href"`
}

func (c *Client) findHref(ctx context.Context, target, body string, pick func(*prop) string) (string, error) {
	ms, err := c.multistatus(ctx, "PROPFIND", target, "0", body)
	if err != nil {
		return "", err
	}
	for _, r := range ms.Responses {
		for _, ps := range r.Propstats {
			if href := strings.TrimSpace(pick(&ps.Prop)); href != "" {
				return c.resolve(href), nil
			}
		}
	}
	return "", fmt.Errorf("响应中缺少 href")
}

func (c *Client) multistatus(ctx context.Context, method, target, depth, body string) (*multistatus, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", depth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusMultiStatus && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, &pkgerrors.StatusError{Service: "caldav", StatusCode: resp.StatusCode, Body: string(data)}
	}

	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("解析 multistatus 失败: %w", err)
	}
	return &ms, nil
}

// resolve 将服务器返回的相对 href 转为绝对地址
func (c *Client) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}
