package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/config"
	"github.com/Redwinam/dida-master/internal/dto"
	"github.com/Redwinam/dida-master/internal/model"
	pkgerrors "github.com/Redwinam/dida-master/pkg/errors"
)

// ── 测试辅助 ──

func setupTestDispatchService(grace int) (DispatchService, *mockRepos, *mockTrigger) {
	repo, mocks := newMockRepository()
	trigger := &mockTrigger{fail: map[string]error{}}
	svc := NewDispatchService(&config.CronConfig{GraceMinutes: grace}, repo, NewMemoryWatermark(), trigger, zap.NewNop())
	return svc, mocks, trigger
}

func withKey(m *mockRepos, userID string) {
	m.apiKey.keys[userID] = &model.APIKey{ID: "k-" + userID, UserID: userID}
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// ── Dispatch 测试 ──

func TestDispatchService_Daily_ExactMinute(t *testing.T) {
	svc, mocks, trigger := setupTestDispatchService(0)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "u1")

	res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:30Z"))
	if res.Triggered != 1 {
		t.Fatalf("08:00 上海时间应触发，实际 triggered=%d errors=%v", res.Triggered, res.Errors)
	}
	if trigger.calls[0].kind != dto.KindDailyNote || trigger.calls[0].userID != "u1" {
		t.Errorf("触发参数错误: %+v", trigger.calls[0])
	}

	res = svc.Dispatch(context.Background(), utc("2026-01-05T00:01:00Z"))
	if res.Triggered != 0 {
		t.Errorf("精确匹配模式下 08:01 不应触发，实际=%d", res.Triggered)
	}
}

func TestDispatchService_Daily_TimezoneShiftsInstant(t *testing.T) {
	svc, mocks, _ := setupTestDispatchService(0)
	mocks.userConfig.put("tokyo", model.UserSettings{
		Timezone:             "Asia/Tokyo",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "tokyo")

	if res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:00Z")); res.Triggered != 0 {
		t.Errorf("东京用户在 UTC 00:00 不应触发，实际=%d", res.Triggered)
	}
	if res := svc.Dispatch(context.Background(), utc("2026-01-04T23:00:00Z")); res.Triggered != 1 {
		t.Errorf("东京用户在 UTC 23:00 应触发，实际=%d", res.Triggered)
	}
}

func TestDispatchService_Weekly_FiresOnce(t *testing.T) {
	svc, mocks, trigger := setupTestDispatchService(2)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:              "Asia/Shanghai",
		ScheduleWeeklyEnabled: true,
		ScheduleWeeklyTime:    "09:00",
		ScheduleWeeklyDay:     1,
	})
	withKey(mocks, "u1")

	// 2026-01-05 为周一
	res := svc.Dispatch(context.Background(), utc("2026-01-05T01:00:00Z"))
	if res.Triggered != 1 {
		t.Fatalf("周一 09:00 应触发周报，实际=%d errors=%v", res.Triggered, res.Errors)
	}
	res = svc.Dispatch(context.Background(), utc("2026-01-05T01:01:00Z"))
	if res.Triggered != 0 {
		t.Errorf("一分钟后不应重复触发，实际=%d", res.Triggered)
	}
	if len(trigger.calls) != 1 || trigger.calls[0].kind != dto.KindWeeklyReport {
		t.Errorf("期望仅一次周报触发，实际=%+v", trigger.calls)
	}
}

func TestDispatchService_Daily_RescheduledSameDayFiresAgain(t *testing.T) {
	svc, mocks, trigger := setupTestDispatchService(2)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "u1")

	if res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:00Z")); res.Triggered != 1 {
		t.Fatalf("08:00 应触发，实际=%d errors=%v", res.Triggered, res.Errors)
	}

	// 同一天把时间改到 10:00
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "10:00",
	})
	if res := svc.Dispatch(context.Background(), utc("2026-01-05T02:00:00Z")); res.Triggered != 1 {
		t.Errorf("同日改期后的新槽位应再次触发，实际=%d errors=%v", res.Triggered, res.Errors)
	}
	if res := svc.Dispatch(context.Background(), utc("2026-01-05T02:01:00Z")); res.Triggered != 0 {
		t.Errorf("同一槽位不应重复触发，实际=%d", res.Triggered)
	}
	if len(trigger.calls) != 2 {
		t.Errorf("期望两次触发，实际=%+v", trigger.calls)
	}
}

func TestDispatchService_Weekly_WrongWeekday(t *testing.T) {
	svc, mocks, _ := setupTestDispatchService(2)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:              "Asia/Shanghai",
		ScheduleWeeklyEnabled: true,
		ScheduleWeeklyTime:    "09:00",
		ScheduleWeeklyDay:     1,
	})
	withKey(mocks, "u1")

	if res := svc.Dispatch(context.Background(), utc("2026-01-06T01:00:00Z")); res.Triggered != 0 {
		t.Errorf("周二不应触发周报，实际=%d", res.Triggered)
	}
}

func TestDispatchService_GraceWindowCatchesLateTick(t *testing.T) {
	svc, mocks, _ := setupTestDispatchService(2)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "u1")

	if res := svc.Dispatch(context.Background(), utc("2026-01-05T00:02:10Z")); res.Triggered != 1 {
		t.Errorf("宽限窗口内的迟到 tick 应触发，实际=%d", res.Triggered)
	}
	if res := svc.Dispatch(context.Background(), utc("2026-01-05T00:03:00Z")); res.Triggered != 0 {
		t.Errorf("超出宽限窗口不应触发，实际=%d", res.Triggered)
	}
}

func TestDispatchService_SkipsUserWithoutKey(t *testing.T) {
	svc, mocks, trigger := setupTestDispatchService(0)
	mocks.userConfig.put("nokey", model.UserSettings{
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})

	res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:00Z"))
	if res.Triggered != 0 || len(res.Errors) != 0 || len(trigger.calls) != 0 {
		t.Errorf("无 API Key 的用户应静默跳过，实际=%+v", res)
	}
}

func TestDispatchService_InvalidTimezone(t *testing.T) {
	svc, mocks, _ := setupTestDispatchService(0)
	mocks.userConfig.put("bad", model.UserSettings{
		Timezone:             "Mars/Olympus",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	mocks.userConfig.put("good", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "bad")
	withKey(mocks, "good")

	res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:00Z"))
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "bad") {
		t.Errorf("期望一条时区错误，实际=%v", res.Errors)
	}
	if res.Triggered != 1 {
		t.Errorf("其他用户不应受影响，实际 triggered=%d", res.Triggered)
	}
}

func TestDispatchService_TriggerFailureReleasesWatermark(t *testing.T) {
	svc, mocks, trigger := setupTestDispatchService(2)
	mocks.userConfig.put("u1", model.UserSettings{
		Timezone:             "Asia/Shanghai",
		ScheduleDailyEnabled: true,
		ScheduleDailyTime:    "08:00",
	})
	withKey(mocks, "u1")
	trigger.fail["u1"] = errors.New("boom")

	res := svc.Dispatch(context.Background(), utc("2026-01-05T00:00:00Z"))
	if res.Triggered != 0 || len(res.Errors) != 1 {
		t.Fatalf("触发失败应记录错误，实际=%+v", res)
	}
	if res.Status != "ok" {
		t.Errorf("扫描状态应为 ok，实际=%s", res.Status)
	}

	delete(trigger.fail, "u1")
	if res := svc.Dispatch(context.Background(), utc("2026-01-05T00:01:00Z")); res.Triggered != 1 {
		t.Errorf("失败后水位线应释放，下一 tick 重试成功，实际=%d", res.Triggered)
	}
}

func TestDispatchService_ListError(t *testing.T) {
	svc, mocks, _ := setupTestDispatchService(0)
	mocks.userConfig.listErr = errors.New("db down")

	res := svc.Dispatch(context.Background(), time.Now())
	if len(res.Errors) != 1 {
		t.Errorf("期望一条加载错误，实际=%v", res.Errors)
	}
}

// ── scheduleMatch 测试 ──

func TestScheduleMatch(t *testing.T) {
	shanghai, _ := time.LoadLocation("Asia/Shanghai")

	tests := []struct {
		name    string
		now     string
		hhmm    string
		grace   time.Duration
		weekday int
		want    bool
		slot    string
	}{
		{"精确命中", "2026-01-05T00:00:59Z", "08:00", 0, -1, true, "2026-01-05"},
		{"早一分钟", "2026-01-04T23:59:00Z", "08:00", 0, -1, false, ""},
		{"跨零点宽限", "2026-01-05T16:01:00Z", "23:59", 2 * time.Minute, -1, true, "2026-01-05"},
		{"格式错误", "2026-01-05T00:00:00Z", "8:00", 0, -1, false, ""},
		{"小时越界", "2026-01-05T00:00:00Z", "24:00", 0, -1, false, ""},
		{"星期匹配", "2026-01-05T00:00:00Z", "08:00", 0, 1, true, "2026-01-05"},
		{"星期不匹配", "2026-01-05T00:00:00Z", "08:00", 0, 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := scheduleMatch(utc(tt.now), shanghai, tt.hhmm, tt.grace, tt.weekday)
			if ok != tt.want {
				t.Fatalf("期望 match=%v，实际=%v", tt.want, ok)
			}
			if ok && slot.Format("2006-01-02") != tt.slot {
				t.Errorf("期望槽位日期=%s，实际=%s", tt.slot, slot.Format("2006-01-02"))
			}
		})
	}
}

func TestScheduleMatch_YesterdaySlot(t *testing.T) {
	shanghai, _ := time.LoadLocation("Asia/Shanghai")

	// 上海时间 2026-01-06 00:01，槽位为前一天 23:59
	slot, ok := scheduleMatch(utc("2026-01-05T16:01:00Z"), shanghai, "23:59", 2*time.Minute, -1)
	if !ok {
		t.Fatal("跨零点应命中前一天槽位")
	}
	if got := slot.In(shanghai).Format("2006-01-02 15:04"); got != "2026-01-05 23:59" {
		t.Errorf("期望槽位=2026-01-05 23:59，实际=%s", got)
	}
}

// ── Watermark 测试 ──

func TestMemoryWatermark_ClaimReleaseExpire(t *testing.T) {
	w := NewMemoryWatermark().(*memoryWatermark)
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := w.Claim(ctx, "k", time.Hour); !ok {
		t.Fatal("首次占用应成功")
	}
	if ok, _ := w.Claim(ctx, "k", time.Hour); ok {
		t.Error("重复占用应失败")
	}
	_ = w.Release(ctx, "k")
	if ok, _ := w.Claim(ctx, "k", time.Hour); !ok {
		t.Error("释放后应可再次占用")
	}

	now = now.Add(2 * time.Hour)
	if ok, _ := w.Claim(ctx, "k", time.Hour); !ok {
		t.Error("过期后应可再次占用")
	}
}

// ── HTTP Trigger 测试 ──

type fakeIssuer struct{}

func (fakeIssuer) GenerateDispatchToken(userID string, _ time.Duration) (string, error) {
	return "tok-" + userID, nil
}

func TestHTTPTrigger_Fire(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/v1/actions/daily-note":
			_, _ = w.Write([]byte(`{"status":"queued"}`))
		case "/api/v1/actions/weekly-report":
			_, _ = w.Write([]byte(`{"error":true,"message":"Config not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	trig := NewHTTPTrigger(srv.URL+"/", 5*time.Second, fakeIssuer{})

	if err := trig.Fire(context.Background(), dto.KindDailyNote, "u1"); err != nil {
		t.Fatalf("触发应成功: %v", err)
	}
	if gotPath != "/api/v1/actions/daily-note" {
		t.Errorf("期望路径=/api/v1/actions/daily-note，实际=%s", gotPath)
	}
	if gotAuth != "Bearer tok-u1" {
		t.Errorf("期望 Authorization=Bearer tok-u1，实际=%s", gotAuth)
	}

	err := trig.Fire(context.Background(), dto.KindWeeklyReport, "u1")
	if !errors.Is(err, ErrTriggerRejected) {
		t.Errorf("200 + error 信封应视为失败，实际: %v", err)
	}

	err = trig.Fire(context.Background(), "unknown", "u1")
	if pkgerrors.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("非 2xx 应返回 StatusError，实际: %v", err)
	}
}
