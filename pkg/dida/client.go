package dida

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Redwinam/dida-master/config"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// dateLayout 开放平台要求的带时区偏移日期格式
const dateLayout = "2006-01-02T15:04:05-0700"

// Project 清单
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed,omitempty"`
}

// Task 任务；Status 0 为未完成，2 为已完成
type Task struct {
	ID            string `json:"id"`
	ProjectID     string `json:"projectId"`
	Title         string `json:"title"`
	Content       string `json:"content,omitempty"`
	Priority      int    `json:"priority"`
	Status        int    `json:"status"`
	DueDate       string `json:"dueDate,omitempty"`
	CompletedTime string `json:"completedTime,omitempty"`
}

// projectData /project/{id}/data 响应
type projectData struct {
	Project Project `json:"project"`
	Tasks   []Task  `json:"tasks"`
}

// Note 待创建的笔记
type Note struct {
	ProjectID string
	Title     string
	Content   string
	TimeZone  string
}

// createTaskRequest POST /task 请求体
type createTaskRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	ProjectID string `json:"projectId"`
	IsAllDay  bool   `json:"isAllDay"`
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate"`
	TimeZone  string `json:"timeZone"`
	Kind      string `json:"kind"`
}

// Client 滴答清单开放平台客户端
// Token 按调用传入，同一客户端服务所有用户
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg *config.DidaConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Projects 列出全部清单
func (c *Client) Projects(ctx context.Context, token string) ([]Project, error) {
	var projects []Project
	if err := c.getJSON(ctx, token, "", "/project", &projects); err != nil {
		return nil, fmt.Errorf("获取清单列表失败: %w", err)
	}
	return projects, nil
}

// ProjectTasks 获取清单下的未完成任务
func (c *Client) ProjectTasks(ctx context.Context, token, projectID string) ([]Task, error) {
	var data projectData
	if err := c.getJSON(ctx, token, "", "/project/"+url.PathEscape(projectID)+"/data", &data); err != nil {
		return nil, fmt.Errorf("获取清单 %s 任务失败: %w", projectID, err)
	}
	for i := range data.Tasks {
		if data.Tasks[i].ProjectID == "" {
			data.Tasks[i].ProjectID = projectID
		}
	}
	return data.Tasks, nil
}

// CompletedTasks 一次性获取所有清单在 [from, to] 内完成的任务
// cookie 为网页端会话（可选），部分账号的已完成接口需要它
func (c *Client) CompletedTasks(ctx context.Context, token, cookie string, from, to time.Time) ([]Task, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format("2006-01-02 15:04:05"))
	q.Set("to", to.UTC().Format("2006-01-02 15:04:05"))
	q.Set("status", "Completed")

	var tasks []Task
	if err := c.getJSON(ctx, token, cookie, "/project/all/closed?"+q.Encode(), &tasks); err != nil {
		return nil, fmt.Errorf("获取已完成任务失败: %w", err)
	}
	return tasks, nil
}

// CreateNote 在目标清单中创建全天笔记，返回创建的任务
func (c *Client) CreateNote(ctx context.Context, token string, note *Note, now time.Time) (*Task, error) {
	loc, err := time.LoadLocation(note.TimeZone)
	if err != nil {
		loc, _ = time.LoadLocation("Asia/Shanghai")
		note.TimeZone = "Asia/Shanghai"
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc)

	body, err := json.Marshal(createTaskRequest{
		Title:     note.Title,
		Content:   note.Content,
		ProjectID: note.ProjectID,
		IsAllDay:  true,
		StartDate: dayStart.Format(dateLayout),
		DueDate:   dayEnd.Format(dateLayout),
		TimeZone:  note.TimeZone,
		Kind:      "NOTE",
	})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, token, "", "/task", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var task Task
	if err := c.doJSON(req, &task); err != nil {
		return nil, fmt.Errorf("创建笔记失败: %w", err)
	}
	return &task, nil
}

func (c *Client) getJSON(ctx context.Context, token, cookie, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, token, cookie, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, token, cookie, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", "t="+cookie)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgerrors.StatusError{Service: "dida", StatusCode: resp.StatusCode, Body: string(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
