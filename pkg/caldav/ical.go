package caldav

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	icsUTCLayout   = "20060102T150405Z"
	icsLocalLayout = "20060102T150405"
	icsDateLayout  = "20060102"
)

// Event 日历事件；Start 为 nil 表示无法解析开始时间
type Event struct {
	Title    string     `json:"title"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Location string     `json:"location,omitempty"`
	Calendar string     `json:"calendar,omitempty"`
}

// ParseEvents 解析 iCalendar 文本中的全部 VEVENT
// 浮动时间按 loc 解释，带 TZID 的时间按其时区解释
func ParseEvents(r io.Reader, loc *time.Location) ([]Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var events []Event
	for _, vevent := range cal.Events() {
		ev := Event{}
		if p := vevent.GetProperty(ics.ComponentPropertySummary); p != nil {
			ev.Title = unescapeText(p.Value)
		}
		if p := vevent.GetProperty(ics.ComponentPropertyLocation); p != nil {
			ev.Location = unescapeText(p.Value)
		}
		if t, err := propertyTime(vevent, ics.ComponentPropertyDtStart, loc); err == nil {
			ev.Start = &t
		}
		if t, err := propertyTime(vevent, ics.ComponentPropertyDtEnd, loc); err == nil {
			ev.End = &t
		}
		events = append(events, ev)
	}
	return events, nil
}

// propertyTime 解析 DTSTART/DTEND，依次尝试 UTC、本地、纯日期格式
func propertyTime(evt *ics.VEvent, name ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(name)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", name)
	}
	val := strings.TrimSpace(prop.Value)

	zone := loc
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			if tz, err := time.LoadLocation(v[0]); err == nil {
				zone = tz
			}
		}
	}

	if t, err := time.Parse(icsUTCLayout, val); err == nil {
		return t, nil
	}
	for _, layout := range []string{icsLocalLayout, icsDateLayout} {
		if t, err := time.ParseInLocation(layout, val, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

// NewEvent 待写入日历的事件
type NewEvent struct {
	Title       string
	Start       time.Time
	End         time.Time
	Location    string
	Description string
	AllDay      bool
}

// Serialize 生成 VCALENDAR 文本，返回事件 UID
func (e *NewEvent) Serialize(now time.Time) (string, string) {
	uid := uuid.NewString()

	cal := ics.NewCalendar()
	cal.SetProductId("-//dida-master//CalDAV//CN")

	vevent := cal.AddEvent(uid)
	vevent.SetDtStampTime(now)
	vevent.SetCreatedTime(now)
	vevent.SetSummary(e.Title)
	if e.Location != "" {
		vevent.SetLocation(e.Location)
	}
	if e.Description != "" {
		vevent.SetDescription(e.Description)
	}

	end := e.End
	if end.IsZero() || !end.After(e.Start) {
		end = e.Start.Add(time.Hour)
	}
	if e.AllDay {
		vevent.SetAllDayStartAt(e.Start)
		if !end.After(e.Start.AddDate(0, 0, 1)) {
			end = e.Start.AddDate(0, 0, 1)
		}
		vevent.SetAllDayEndAt(end)
	} else {
		vevent.SetStartAt(e.Start)
		vevent.SetEndAt(end)
	}

	return uid, cal.Serialize()
}
