package service

import (
	"sort"
	"strings"
	"time"

	"github.com/Redwinam/dida-master/pkg/caldav"
)

const (
	noEventsText     = "无"
	unknownTimeText  = "未知时间"
	eventStartLayout = "2006/1/2 15:04:05"
)

// FormatEvents 按开始时间排序并渲染为列表，时间以 loc 显示
func FormatEvents(events []caldav.Event, loc *time.Location) string {
	if len(events) == 0 {
		return noEventsText
	}

	sorted := make([]caldav.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Start, sorted[j].Start
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	lines := make([]string, 0, len(sorted))
	for _, ev := range sorted {
		start := unknownTimeText
		if ev.Start != nil {
			start = ev.Start.In(loc).Format(eventStartLayout)
		}
		lines = append(lines, "- "+start+" - "+ev.Title+" ("+ev.Location+")")
	}
	return strings.Join(lines, "\n")
}
