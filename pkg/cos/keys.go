package cos

import "fmt"

// keyNamespace 所有对象的统一前缀
const keyNamespace = "dida-master"

// DailyNoteKey 每日笔记对象路径，记录 ID 保证同日多次生成不会互相覆盖
func DailyNoteKey(userID, noteDate, recordID string) string {
	return fmt.Sprintf("%s/%s/daily-notes/%s_%s.json", keyNamespace, userID, noteDate, recordID)
}

// WeeklyReportKey 周报对象路径
func WeeklyReportKey(userID, periodStart, periodEnd, recordID string) string {
	return fmt.Sprintf("%s/%s/weekly-reports/%s_%s_%s.json", keyNamespace, userID, periodStart, periodEnd, recordID)
}

// StoredRecord 对象存储中保存的内容
type StoredRecord struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
