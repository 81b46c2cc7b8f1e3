package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"recoveryos/internal/auditor"
	"recoveryos/internal/models"
	"recoveryos/internal/orchestrator"
	"recoveryos/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrBriefingBlocked 简报文案未通过安全审计
var ErrBriefingBlocked = errors.New("briefing content blocked by safety audit")

// 最多导出的打卡历史条数
const maxCheckinRows = 30

// SignalsHeader 信号表表头
var SignalsHeader = []string{
	"Signal Type",
	"Window",
	"Value",
	"Baseline",
	"Deviation",
	"Confidence",
}

// CheckinsHeader 打卡历史表表头
var CheckinsHeader = []string{
	"Timestamp",
	"Sleep Hours",
	"Isolation",
	"Adherence",
	"Cravings",
	"Mood Trend",
}

// BriefingExporter 临床简报导出器
// 导出的摘要文案必须先通过安全审计（含授权检查），被拦截则整个导出中止
type BriefingExporter struct {
	orch     *orchestrator.Orchestrator
	consents *repository.ConsentScopesRepository
	logger   *zap.Logger
}

// NewBriefingExporter 创建简报导出器
func NewBriefingExporter(
	orch *orchestrator.Orchestrator,
	consents *repository.ConsentScopesRepository,
	logger *zap.Logger,
) *BriefingExporter {
	return &BriefingExporter{
		orch:     orch,
		consents: consents,
		logger:   logger,
	}
}

// GenerateBriefing 生成临床简报 Excel 文件
// 流程：组装摘要文案 → 安全审计（脱敏与授权检查）→ 用脱敏后的文案生成工作簿
func (e *BriefingExporter) GenerateBriefing(
	ctx context.Context,
	userID string,
	analysis *models.PatternsAnalysisResult,
	history []models.CheckIn,
) ([]byte, error) {
	summary := composeSummaryLine(analysis)

	scopeType := auditor.ScopeTypeForContent(models.ContentClinicianBriefing)
	scope, err := e.consents.GetScope(ctx, userID, scopeType)
	if err != nil {
		// 查询失败按无授权处理，审计会走默认拒绝
		e.logger.Error("Failed to load consent scope for briefing",
			zap.String("scope_type", scopeType),
			zap.Error(err),
		)
		scope = nil
	}

	result := e.orch.AuditMessage(ctx, summary, models.ContentClinicianBriefing, userID, scope)
	if result.Decision == models.DecisionBlocked {
		e.logger.Warn("Briefing export blocked",
			zap.Strings("rules_triggered", result.PolicyRulesTriggered),
			zap.String("consent_verdict", result.ConsentVerdict),
		)
		return nil, fmt.Errorf("%w: %s", ErrBriefingBlocked, strings.Join(result.PolicyRulesTriggered, ","))
	}

	return buildBriefingWorkbook(result.AuditMetadata.UserIDHash, result.SanitizedContent, analysis, history)
}

// composeSummaryLine 组装简报封面摘要
func composeSummaryLine(analysis *models.PatternsAnalysisResult) string {
	score := "n/a"
	if analysis.Score != nil {
		score = fmt.Sprintf("%d", *analysis.Score)
	}
	reasons := "none"
	if len(analysis.ReasonCodes) > 0 {
		reasons = strings.Join(analysis.ReasonCodes, ", ")
	}
	return fmt.Sprintf(
		"Risk band %s (score %s, confidence %.2f). Signals detected: %d. Reason codes: %s.",
		analysis.RiskBand, score, analysis.Confidence, len(analysis.Signals), reasons,
	)
}

// buildBriefingWorkbook 生成三张工作表：Summary、Signals、Check-ins
func buildBriefingWorkbook(
	userIDHash string,
	sanitizedSummary string,
	analysis *models.PatternsAnalysisResult,
	history []models.CheckIn,
) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	summarySheet := "Summary"
	index, err := f.NewSheet(summarySheet)
	if err != nil {
		f.Close() // Close on error
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummarySheet(f, summarySheet, headerStyle, userIDHash, sanitizedSummary, analysis); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSignalsSheet(f, headerStyle, analysis.Signals); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeCheckinsSheet(f, headerStyle, history); err != nil {
		f.Close()
		return nil, err
	}

	// Write to bytes buffer
	// Note: File must remain open during Write operation
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

// writeSummarySheet 封面：键值对 + 审计后的摘要文案
func writeSummarySheet(
	f *excelize.File,
	sheet string,
	headerStyle int,
	userIDHash string,
	sanitizedSummary string,
	analysis *models.PatternsAnalysisResult,
) error {
	score := ""
	if analysis.Score != nil {
		score = fmt.Sprintf("%d", *analysis.Score)
	}

	rows := [][2]interface{}{
		{"Member", userIDHash},
		{"Risk Band", string(analysis.RiskBand)},
		{"Score", score},
		{"Confidence", analysis.Confidence},
		{"Reason Codes", strings.Join(analysis.ReasonCodes, ", ")},
		{"Summary", sanitizedSummary},
	}

	for rowIdx, row := range rows {
		labelCell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, labelCell, row[0]); err != nil {
			return fmt.Errorf("failed to set summary label %s: %w", labelCell, err)
		}
		if err := f.SetCellStyle(sheet, labelCell, labelCell, headerStyle); err != nil {
			return fmt.Errorf("failed to set summary label style: %w", err)
		}

		valueCell, err := excelize.CoordinatesToCellName(2, rowIdx+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, valueCell, row[1]); err != nil {
			return fmt.Errorf("failed to set summary value %s: %w", valueCell, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 80); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	return nil
}

// writeSignalsSheet 信号明细，一行一个信号
func writeSignalsSheet(f *excelize.File, headerStyle int, signals []models.Signal) error {
	sheet := "Signals"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create signals sheet: %w", err)
	}

	if err := writeHeaderRow(f, sheet, headerStyle, SignalsHeader); err != nil {
		return err
	}

	for rowIdx, s := range signals {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		deviation := ""
		if s.Deviation != nil {
			deviation = fmt.Sprintf("%.2f", *s.Deviation)
		}
		values := []interface{}{
			string(s.Type),
			string(s.Window),
			s.Value,
			s.Baseline,
			deviation,
			s.Confidence,
		}
		if err := writeRow(f, sheet, row, values); err != nil {
			return err
		}
	}

	return freezeHeaderRow(f, sheet)
}

// writeCheckinsSheet 近期打卡历史（最多 maxCheckinRows 条，最新在前）
func writeCheckinsSheet(f *excelize.File, headerStyle int, history []models.CheckIn) error {
	sheet := "Check-ins"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create check-ins sheet: %w", err)
	}

	if err := writeHeaderRow(f, sheet, headerStyle, CheckinsHeader); err != nil {
		return err
	}

	// history 按时间升序存储，这里倒序取最近的
	count := len(history)
	if count > maxCheckinRows {
		count = maxCheckinRows
	}
	for i := 0; i < count; i++ {
		checkin := history[len(history)-1-i]
		row := i + 2
		values := []interface{}{
			checkin.TS,
			checkin.SleepHours,
			checkin.Isolation,
			checkin.Adherence,
			checkin.Cravings,
			checkin.MoodTrend,
		}
		if err := writeRow(f, sheet, row, values); err != nil {
			return err
		}
	}

	return freezeHeaderRow(f, sheet)
}

func writeHeaderRow(f *excelize.File, sheet string, headerStyle int, headers []string) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, colName, colName, 18); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to set cell value at %s: %w", cell, err)
		}
	}
	return nil
}

// freezeHeaderRow 冻结表头
func freezeHeaderRow(f *excelize.File, sheet string) error {
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}
