package notifier_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recoveryos/internal/models"
	"recoveryos/internal/notifier"
)

func intPtr(v int) *int { return &v }

func TestNotifyHighRisk_PostsEscalationEvent(t *testing.T) {
	var received notifier.EscalationEvent
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := notifier.NewEscalationNotifier(server.URL, true, 5*time.Second, 0, zap.NewNop())
	require.True(t, n.Enabled())

	analysis := &models.PatternsAnalysisResult{
		RiskBand:    models.RiskBandHigh,
		Score:       intPtr(80),
		ReasonCodes: []string{"ADHERENCE_DECLINE", "MULTIPLE_RISK_FACTORS"},
	}

	err := n.NotifyHighRisk(context.Background(), "hash-abc", analysis)

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "hash-abc", received.UserIDHash)
	assert.Equal(t, "patterns_analyst", received.Source)
	assert.Equal(t, "high", received.RiskBand)
	require.NotNil(t, received.Score)
	assert.Equal(t, 80, *received.Score)
	assert.Equal(t, []string{"ADHERENCE_DECLINE", "MULTIPLE_RISK_FACTORS"}, received.ReasonCodes)
	assert.NotEmpty(t, received.EventID)
	_, err = time.Parse(time.RFC3339, received.TriggeredAt)
	assert.NoError(t, err)
}

func TestNotifyCrisisContent_PostsAuditRules(t *testing.T) {
	var received notifier.EscalationEvent

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := notifier.NewEscalationNotifier(server.URL, true, 5*time.Second, 0, zap.NewNop())

	result := &models.SafetyAuditResult{
		Decision:             models.DecisionBlocked,
		PolicyRulesTriggered: []string{"CRISIS_LANGUAGE_DETECTED"},
		EscalationRequired:   true,
	}

	err := n.NotifyCrisisContent(context.Background(), "hash-abc", result)

	require.NoError(t, err)
	assert.Equal(t, "safety_auditor", received.Source)
	assert.Equal(t, []string{"CRISIS_LANGUAGE_DETECTED"}, received.ReasonCodes)
	assert.Empty(t, received.RiskBand)
	assert.Nil(t, received.Score)
}

func TestNotify_DisabledIsNoop(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	cases := []struct {
		name       string
		webhookURL string
		enabled    bool
	}{
		{"explicitly disabled", server.URL, false},
		{"no webhook url", "", true},
	}

	for _, tc := range cases {
		n := notifier.NewEscalationNotifier(tc.webhookURL, tc.enabled, 5*time.Second, 0, zap.NewNop())
		assert.False(t, n.Enabled(), tc.name)

		err := n.Notify(context.Background(), &notifier.EscalationEvent{Source: "patterns_analyst"})
		assert.NoError(t, err, tc.name)
	}

	assert.Equal(t, 0, calls)
}

func TestNotify_ErrorStatusReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := notifier.NewEscalationNotifier(server.URL, true, 5*time.Second, 0, zap.NewNop())

	err := n.Notify(context.Background(), &notifier.EscalationEvent{
		UserIDHash: "hash-abc",
		Source:     "safety_auditor",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "escalation webhook returned status 500")
}

func TestNotify_FillsDefaultsWithoutOverwriting(t *testing.T) {
	var received notifier.EscalationEvent

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer server.Close()

	n := notifier.NewEscalationNotifier(server.URL, true, 5*time.Second, 0, zap.NewNop())

	err := n.Notify(context.Background(), &notifier.EscalationEvent{
		EventID:     "fixed-event-id",
		UserIDHash:  "hash-abc",
		Source:      "patterns_analyst",
		TriggeredAt: "2025-06-15T12:00:00Z",
	})

	require.NoError(t, err)
	assert.Equal(t, "fixed-event-id", received.EventID)
	assert.Equal(t, "2025-06-15T12:00:00Z", received.TriggeredAt)
	// nil 原因码序列化为空数组
	assert.NotNil(t, received.ReasonCodes)
	assert.Empty(t, received.ReasonCodes)
}
