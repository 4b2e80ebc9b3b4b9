package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Redwinam/dida-master/internal/model"
	"github.com/Redwinam/dida-master/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoRecords    = errors.New("暂无可导出的记录")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// exportLimit 单次导出的最大记录数（每张表）
const exportLimit = 1000

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入
// Excel 格式：Sheet “每日笔记” 与 “周报”，每行一条记录
type ExportService interface {
	ExportRecords(ctx context.Context, userID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	store  ObjectStore
	now    func() time.Time
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, store ObjectStore, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, store: store, now: time.Now, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportRecords 导出历史记录为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportRecords(ctx context.Context, userID string) (*bytes.Buffer, string, error) {
	notes, _, err := s.repo.DailyNote.ListByUser(ctx, userID, 0, exportLimit)
	if err != nil {
		s.logger.Error("查询每日笔记失败", zap.Error(err))
		return nil, "", err
	}
	reports, _, err := s.repo.WeeklyReport.ListByUser(ctx, userID, 0, exportLimit)
	if err != nil {
		s.logger.Error("查询周报失败", zap.Error(err))
		return nil, "", err
	}
	if len(notes) == 0 && len(reports) == 0 {
		return nil, "", ErrExportNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	// 每日笔记
	const dailySheet = "每日笔记"
	idx, _ := f.NewSheet(dailySheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	writeHeader(f, dailySheet, headerStyle, []string{"日期", "标题", "内容", "滴答笔记ID", "创建时间"})
	f.SetColWidth(dailySheet, "A", "B", 16)
	f.SetColWidth(dailySheet, "C", "C", 80)
	f.SetColWidth(dailySheet, "D", "E", 22)
	for i := range notes {
		n := &notes[i]
		row := i + 2
		f.SetCellValue(dailySheet, cell("A", row), n.NoteDate.Format(dateLayout))
		f.SetCellValue(dailySheet, cell("B", row), n.Title)
		f.SetCellValue(dailySheet, cell("C", row), s.content(ctx, &n.Record))
		f.SetCellValue(dailySheet, cell("D", row), deref(n.DidaTaskID))
		f.SetCellValue(dailySheet, cell("E", row), n.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellStyle(dailySheet, cell("C", row), cell("C", row), wrapStyle)
	}

	// 周报
	const weeklySheet = "周报"
	f.NewSheet(weeklySheet)
	writeHeader(f, weeklySheet, headerStyle, []string{"开始日期", "结束日期", "标题", "内容", "滴答笔记ID", "创建时间"})
	f.SetColWidth(weeklySheet, "A", "B", 14)
	f.SetColWidth(weeklySheet, "C", "C", 30)
	f.SetColWidth(weeklySheet, "D", "D", 80)
	f.SetColWidth(weeklySheet, "E", "F", 22)
	for i := range reports {
		r := &reports[i]
		row := i + 2
		f.SetCellValue(weeklySheet, cell("A", row), r.PeriodStart.Format(dateLayout))
		f.SetCellValue(weeklySheet, cell("B", row), r.PeriodEnd.Format(dateLayout))
		f.SetCellValue(weeklySheet, cell("C", row), r.Title)
		f.SetCellValue(weeklySheet, cell("D", row), s.content(ctx, &r.Record))
		f.SetCellValue(weeklySheet, cell("E", row), deref(r.DidaTaskID))
		f.SetCellValue(weeklySheet, cell("F", row), r.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellStyle(weeklySheet, cell("D", row), cell("D", row), wrapStyle)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("dida-master_%s.xlsx", s.now().Format("20060102"))
	return buf, filename, nil
}

// content 内联正文直接返回，对象存储中的正文尽力读取
func (s *exportService) content(ctx context.Context, rec *model.Record) string {
	if !rec.StoredInCOS() {
		return rec.Content
	}
	stored, err := s.store.FetchRecord(ctx, *rec.CosKey)
	if err != nil {
		s.logger.Warn("导出时读取对象存储失败", zap.String("key", *rec.CosKey), zap.Error(err))
		return "（内容读取失败）"
	}
	return stored.Content
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, style int, titles []string) {
	for i, title := range titles {
		c := cell(colName(i), 1)
		f.SetCellValue(sheet, c, title)
		f.SetCellStyle(sheet, c, c, style)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
