package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Redwinam/dida-master/pkg/dida"
)

const (
	inboxProjectName = "收集箱"
	noTasksText      = "没有找到任务数据"
	taskStatusDone   = 2
)

var priorityLabels = map[int]string{
	5: "重要紧急",
	3: "重要不紧急",
	1: "不重要紧急",
	0: "不重要不紧急",
}

// FormatTasks 将任务按清单分组渲染为 Markdown 报告，输出确定且可复现
func FormatTasks(tasks []dida.Task, projects []dida.Project) string {
	if len(tasks) == 0 {
		return noTasksText
	}

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	type bucket struct {
		pending []dida.Task
		done    []dida.Task
	}
	buckets := make(map[string]*bucket)
	completed := 0
	withPriority := false

	for _, t := range tasks {
		name, ok := names[t.ProjectID]
		if !ok || name == "" {
			name = inboxProjectName
		}
		b := buckets[name]
		if b == nil {
			b = &bucket{}
			buckets[name] = b
		}
		if t.Status == taskStatusDone {
			b.done = append(b.done, t)
			completed++
		} else {
			b.pending = append(b.pending, t)
		}
		if t.Priority != 0 {
			withPriority = true
		}
	}

	projectNames := make([]string, 0, len(buckets))
	for name := range buckets {
		projectNames = append(projectNames, name)
	}
	sort.Strings(projectNames)

	var sb strings.Builder
	sb.WriteString("# 滴答清单任务报告\n")
	fmt.Fprintf(&sb, "总任务数: %d (未完成: %d, 已完成: %d)\n\n", len(tasks), len(tasks)-completed, completed)

	for _, name := range projectNames {
		b := buckets[name]
		fmt.Fprintf(&sb, "## %s\n", name)

		if len(b.pending) > 0 {
			fmt.Fprintf(&sb, "### 📋 未完成 (%d个)\n", len(b.pending))
			for _, t := range b.pending {
				sb.WriteString("- ")
				sb.WriteString(taskTitle(t))
				if withPriority {
					if label, ok := priorityLabels[t.Priority]; ok {
						fmt.Fprintf(&sb, " (%s)", label)
					}
				}
				if t.DueDate != "" {
					due := t.DueDate
					if len(due) > 10 {
						due = due[:10]
					}
					fmt.Fprintf(&sb, " 📅%s", due)
				}
				sb.WriteString("\n")
			}
		}

		if len(b.done) > 0 {
			fmt.Fprintf(&sb, "### ✅ 已完成 (%d个)\n", len(b.done))
			for _, t := range b.done {
				fmt.Fprintf(&sb, "- ✅ %s\n", taskTitle(t))
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func taskTitle(t dida.Task) string {
	if strings.TrimSpace(t.Title) == "" {
		return "无标题"
	}
	return t.Title
}
