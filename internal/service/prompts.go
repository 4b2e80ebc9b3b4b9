package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Redwinam/dida-master/internal/model"
)

var zhWeekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// zhDate 形如 2026/1/5
func zhDate(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return fmt.Sprintf("%d/%d/%d", local.Year(), int(local.Month()), local.Day())
}

// zhLongDate 形如 2026年1月5日
func zhLongDate(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return fmt.Sprintf("%d年%d月%d日", local.Year(), int(local.Month()), local.Day())
}

// zhLongDateWithWeekday 形如 2026年1月5日星期一
func zhLongDateWithWeekday(t time.Time, loc *time.Location) string {
	return zhLongDate(t, loc) + zhWeekdays[t.In(loc).Weekday()]
}

func formatConstraint(mbti string) string {
	if mbti != "" {
		return fmt.Sprintf("（但回复中无需提到%s属性；返回格式中不使用表格、无需一级标题）", mbti)
	}
	return "（返回格式中不使用表格、无需一级标题）"
}

func dailyPrompt(now time.Time, loc *time.Location, mbti, calendarContext, tasksContext string) string {
	persona := ""
	if mbti != "" {
		persona = fmt.Sprintf("，专门为%s人格类型设计日程安排", mbti)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一个高效的时间管理专家%s。\n", persona)
	fmt.Fprintf(&sb, "今天是%s。\n", zhLongDateWithWeekday(now, loc))
	sb.WriteString("请根据以下任务列表，为我制定今天的日程安排。并提供一些针对各项任务与一天具体的专业建议。\n")
	sb.WriteString(formatConstraint(mbti))
	sb.WriteString("\n\n近日行程：\n")
	sb.WriteString(calendarContext)
	sb.WriteString("\n\n待办任务：\n")
	sb.WriteString(tasksContext)
	sb.WriteString("\n\n请直接输出内容，不要使用markdown代码块包裹。")
	return sb.String()
}

// weeklyContext 周报提示词所需的上下文
type weeklyContext struct {
	Done, Pending string
	PastEvents    string
	NextEvents    string
	DateStr       string
	Now           time.Time
	Location      *time.Location
	MBTI          string
}

func weeklyPrompt(wc weeklyContext) string {
	persona := ""
	if wc.MBTI != "" {
		persona = fmt.Sprintf("，专门为%s人格类型撰写周报", wc.MBTI)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一个专业的项目经理%s。\n", persona)
	fmt.Fprintf(&sb, "今天是%s。\n", zhDate(wc.Now, wc.Location))
	sb.WriteString("请根据以下信息，为我撰写一份本周工作周报。\n")
	fmt.Fprintf(&sb, "周报周期：%s\n", wc.DateStr)
	sb.WriteString(formatConstraint(wc.MBTI))
	sb.WriteString("\n\n本周完成任务：\n")
	sb.WriteString(wc.Done)
	sb.WriteString("\n\n本周未完成任务：\n")
	sb.WriteString(wc.Pending)
	sb.WriteString("\n\n本周行程记录：\n")
	sb.WriteString(wc.PastEvents)
	sb.WriteString("\n\n下周行程预览：\n")
	sb.WriteString(wc.NextEvents)
	sb.WriteString("\n\n请按以下结构输出：\n1. 本周工作总结\n2. 完成情况分析\n3. 下周工作计划\n4. 改进建议\n\n")
	sb.WriteString("请直接输出内容，不要使用markdown代码块包裹。")
	return sb.String()
}

// calendarPrompt source 为“文本”或“图片”
func calendarPrompt(source string, calendars []string, today string) string {
	fallback := "默认"
	if len(calendars) > 0 {
		fallback = calendars[0]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "请识别%s中的日程信息，并将其转换为 JSON 格式。\n", source)
	fmt.Fprintf(&sb, "当前日期是: %s\n", today)
	fmt.Fprintf(&sb, "允许的日历名称: %s (如果无法确定，默认为\"%s\")\n\n", strings.Join(calendars, ", "), fallback)
	sb.WriteString("返回格式必须是 JSON 数组，包含以下字段:\n")
	sb.WriteString("- title: 事件标题\n")
	sb.WriteString("- start: 开始时间 (ISO 8601 格式)\n")
	sb.WriteString("- end: 结束时间 (ISO 8601 格式)\n")
	sb.WriteString("- location: 地点 (可选)\n")
	sb.WriteString("- calendar: 日历名称 (必须从允许列表中选择)\n")
	sb.WriteString("- allDay: 是否全天 (boolean)\n\n")
	sb.WriteString("只返回 JSON，不要包含 markdown 标记。")
	return sb.String()
}

// templateEventFields 模板日程可由模型填写的全部字段
var templateEventFields = []string{"title", "start", "end", "location", "calendar", "allDay", "description", "reminders"}

// templatePrompt 只要求模型输出模板未固定的字段
func templatePrompt(text string, calendars []string, today, timezone string, rules model.TemplateRules) string {
	allowed := make([]string, 0, len(templateEventFields))
	for _, f := range templateEventFields {
		if !rules.IsFixed(f) {
			allowed = append(allowed, f)
		}
	}
	fallback := "默认"
	if len(calendars) > 0 {
		fallback = calendars[0]
	}
	titleRule := ""
	if rules.TitleRule != "" {
		titleRule = "标题规则: " + rules.TitleRule
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一个日程助理，请根据用户日程生成 JSON（无 markdown/解释）日程，且只输出字段：%s。\n", strings.Join(allowed, ", "))
	fmt.Fprintf(&sb, "用户日程：%s\n", text)
	fmt.Fprintf(&sb, "今天是：%s, 时区：%s。\n", today, timezone)
	fmt.Fprintf(&sb, "%s\n", titleRule)
	sb.WriteString("时间日期格式：start/end 使用 ISO 8601（如 2026-01-24T19:40:00+08:00）。\n")
	fmt.Fprintf(&sb, "允许的日历名称：%s (不确定时用 \"%s\")", strings.Join(calendars, ", "), fallback)
	return sb.String()
}

var codeFence = regexp.MustCompile("```json\\n?|\\n?```")

// stripCodeFence 去除模型回复中的 ```json 包裹
func stripCodeFence(s string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(s, ""))
}
