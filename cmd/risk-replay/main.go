package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"recoveryos/internal/analyst"
	"recoveryos/internal/auditor"
	"recoveryos/internal/logger"
	"recoveryos/internal/models"
	"recoveryos/internal/reflection"

	"go.uber.org/zap"
)

// risk-replay 离线分析工具
//
// 不连接任何数据库或 Redis，基线缓存使用内存实现。
// 用于回归验证评分规则、排查某个用户的历史分析结果。
//
// 用法：
//   risk-replay -mode analyze -user u123 -history history.json
//   risk-replay -mode quick -input checkin.json
//   risk-replay -mode audit -content "draft text" -type member_message -permissions '["send_member_messages"]'
//
// 文件参数传 "-" 表示从标准输入读取。
func main() {
	mode := flag.String("mode", "analyze", "replay mode: analyze, quick, audit")
	user := flag.String("user", "replay-user", "user id for analyze mode")
	historyPath := flag.String("history", "-", "check-in history JSON file for analyze mode")
	inputPath := flag.String("input", "-", "quick check-in JSON file for quick mode")
	content := flag.String("content", "", "content to audit in audit mode")
	contentType := flag.String("type", "member_message", "content type: member_message, clinician_briefing, family_update")
	permissions := flag.String("permissions", "", "granted permissions JSON array for audit mode (empty = no consent scope)")
	flag.Parse()

	// 控制台日志输出到标准错误，标准输出只打印结果 JSON
	zapLogger, err := logger.NewLogger("warn", "console", "risk-replay")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	switch *mode {
	case "analyze":
		runAnalyze(zapLogger, *user, *historyPath)
	case "quick":
		runQuick(*inputPath)
	case "audit":
		runAudit(zapLogger, *content, *contentType, *permissions)
	default:
		log.Fatalf("Unknown mode: %s", *mode)
	}
}

// runAnalyze 对打卡历史跑一遍模式分析
func runAnalyze(zapLogger *zap.Logger, userID, historyPath string) {
	data, err := readInput(historyPath)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}

	var history []models.CheckIn
	if err := json.Unmarshal(data, &history); err != nil {
		log.Fatalf("Failed to parse history JSON: %v", err)
	}

	// 基线走内存缓存，不落 Redis
	baselines := analyst.NewBaselineCache(analyst.NewMemoryKVStore(), 30*24*time.Hour, zapLogger)
	patternsAnalyst := analyst.NewPatternsAnalyst(baselines, zapLogger)

	result, err := patternsAnalyst.Analyze(context.Background(), userID, history)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	printJSON(result)
}

// runQuick 对单次打卡跑即时评分
func runQuick(inputPath string) {
	data, err := readInput(inputPath)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	var checkin reflection.QuickCheckIn
	if err := json.Unmarshal(data, &checkin); err != nil {
		log.Fatalf("Failed to parse check-in JSON: %v", err)
	}
	if err := checkin.Validate(); err != nil {
		log.Fatalf("Invalid check-in: %v", err)
	}

	printJSON(reflection.Score(&checkin))
}

// runAudit 对一段外发文案跑安全审计
func runAudit(zapLogger *zap.Logger, content, contentType, permissions string) {
	if content == "" {
		log.Fatalf("audit mode requires -content")
	}

	var scope *models.ConsentScope
	if permissions != "" {
		scope = &models.ConsentScope{
			UserID:      "replay-user",
			ScopeType:   auditor.ScopeTypeForContent(models.ContentType(contentType)),
			Permissions: permissions,
			Status:      "active",
		}
	}

	safetyAuditor := auditor.NewSafetyAuditor(nil, zapLogger)
	result := safetyAuditor.Audit(content, models.ContentType(contentType), "replay-user", scope)

	printJSON(result)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}
	fmt.Println(string(out))
}
