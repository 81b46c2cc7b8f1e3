package analyst

import (
	"context"
	"time"

	"recoveryos/internal/models"

	"go.uber.org/zap"
)

// MinCheckinsRequired 开始风险分析所需的最少打卡数（宽限期）
const MinCheckinsRequired = 3

// PatternsAnalyst 模式分析器
//
// 确定性规则优先的风险分析：
// 1. 计算用户基线（前 10 条打卡，按月缓存刷新）
// 2. 聚合 3/14/30 天窗口指标
// 3. 运行阈值检测规则产生信号
// 4. 生成原因码并计算加权风险分
// 所有输出都附带置信度和原因码，保证临床可解释
type PatternsAnalyst struct {
	baselines *BaselineCache
	logger    *zap.Logger
}

// NewPatternsAnalyst 创建模式分析器
func NewPatternsAnalyst(baselines *BaselineCache, logger *zap.Logger) *PatternsAnalyst {
	return &PatternsAnalyst{
		baselines: baselines,
		logger:    logger,
	}
}

// Analyze 分析打卡历史并产出风险评估（以当前时间为窗口截止点）
func (a *PatternsAnalyst) Analyze(ctx context.Context, userID string, history []models.CheckIn) (*models.PatternsAnalysisResult, error) {
	return a.AnalyzeAt(ctx, userID, history, time.Now().UTC())
}

// AnalyzeAt 以指定时间为窗口截止点分析打卡历史
// history 必须按时间升序排列；时间戳解析失败时整次分析返回 ErrBadTimestamp
func (a *PatternsAnalyst) AnalyzeAt(ctx context.Context, userID string, history []models.CheckIn, now time.Time) (*models.PatternsAnalysisResult, error) {
	// 1. 宽限期：打卡不足时不评分
	if len(history) < MinCheckinsRequired {
		return &models.PatternsAnalysisResult{
			RiskBand:    models.RiskBandInsufficientData,
			Score:       nil,
			Signals:     []models.Signal{},
			ReasonCodes: []string{ReasonInsufficientData},
			Confidence:  0.0,
			Metadata: models.AnalysisMetadata{
				CheckinsCount: len(history),
				MinRequired:   MinCheckinsRequired,
			},
		}, nil
	}

	// 2. 基线（缓存优先）
	baseline := a.baselines.GetOrCompute(ctx, userID, history)

	// 3. 窗口聚合
	windows, err := BuildWindows(history, now)
	if err != nil {
		return nil, err
	}

	// 4. 信号检测
	signals := DetectSignals(&windows, baseline)
	if signals == nil {
		signals = []models.Signal{}
	}

	// 5. 原因码
	reasonCodes := GenerateReasonCodes(signals)

	// 6. 风险分与等级
	score, confidence := CalculateRiskScore(signals)
	riskBand := DetermineRiskBand(score)

	windowsAvailable := []string{}
	for _, w := range windows.Ordered() {
		if w.Aggregate.Available {
			windowsAvailable = append(windowsAvailable, string(w.Name))
		}
	}

	a.logger.Debug("Analyzed check-in history",
		zap.String("user_id", userID),
		zap.String("risk_band", string(riskBand)),
		zap.Int("score", score),
		zap.Int("signals_count", len(signals)),
	)

	return &models.PatternsAnalysisResult{
		RiskBand:    riskBand,
		Score:       &score,
		Signals:     signals,
		Windows:     windows,
		ReasonCodes: reasonCodes,
		Confidence:  confidence,
		Metadata: models.AnalysisMetadata{
			CheckinsAnalyzed: len(history),
			Baselines:        &baseline,
			WindowsAvailable: windowsAvailable,
		},
	}, nil
}
