package signals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monosonet/modcore/internal/moderation/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultStoreConfig()
	cfg.CleanupInterval = 20 * time.Millisecond

	rules := NewRuleEngine()
	runner := NewPipelineRunner(4, nil)
	store := NewStore(cfg, rules, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store.Start(ctx)
	return store
}

func TestStore_AddAndGet(t *testing.T) {
	store := newTestStore(t)
	signal := types.Signal{
		ID:         uuid.New(),
		SignalType: types.SignalContentSpam,
		Severity:   types.SeverityMedium,
		Confidence: 0.6,
		Timestamp:  time.Now(),
	}

	require.NoError(t, store.AddSignal(context.Background(), signal))

	got, ok := store.Get(signal.ID)
	require.True(t, ok)
	assert.Equal(t, signal.SignalType, got.SignalType)
}

func TestStore_ExpiredSignalNotObservedAfterSweep(t *testing.T) {
	store := newTestStore(t)
	expires := time.Now().Add(10 * time.Millisecond)
	signal := types.Signal{
		ID:         uuid.New(),
		SignalType: types.SignalUserReport,
		Severity:   types.SeverityLow,
		Confidence: 0.5,
		Timestamp:  time.Now(),
		ExpiresAt:  &expires,
	}
	require.NoError(t, store.AddSignal(context.Background(), signal))

	time.Sleep(80 * time.Millisecond)

	_, ok := store.Get(signal.ID)
	assert.False(t, ok)

	list := store.List(types.SignalFilter{})
	for _, s := range list {
		assert.NotEqual(t, signal.ID, s.ID)
	}
}

func TestStore_EmitContentSignals_HighConfidenceAndSpam(t *testing.T) {
	store := newTestStore(t)
	req := types.ClassificationRequest{ContentID: "c1", UserID: "u1"}
	result := types.ClassificationResult{
		ContentID:  "c1",
		UserID:     "u1",
		Label:      types.LabelSpam,
		Confidence: 0.85,
	}

	ids, err := store.EmitContentSignals(context.Background(), req, result)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	sig1, ok := store.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, types.SignalHighConfidenceViolation, sig1.SignalType)

	sig2, ok := store.Get(ids[1])
	require.True(t, ok)
	assert.Equal(t, types.SignalContentSpam, sig2.SignalType)
	assert.Equal(t, types.SeverityMedium, sig2.Severity)
}

func TestStore_EmitContentSignals_CleanProducesNoSignals(t *testing.T) {
	store := newTestStore(t)
	req := types.ClassificationRequest{ContentID: "c2", UserID: "u1"}
	result := types.ClassificationResult{ContentID: "c2", UserID: "u1", Label: types.LabelClean, Confidence: 0.2}

	ids, err := store.EmitContentSignals(context.Background(), req, result)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRuleEngine_PriorityOrderAndFold(t *testing.T) {
	engine := NewRuleEngine()
	engine.AddRule(types.SignalRule{
		ID:          "low-priority",
		SignalTypes: []types.SignalType{types.SignalContentSpam},
		Conditions: []types.SignalCondition{
			{Field: "severity", Operator: types.OpEquals, Value: "medium"},
		},
		Actions:  []types.SignalAction{{ActionType: types.ActionFlagForReview}},
		Priority: 10,
		Enabled:  true,
	})
	engine.AddRule(types.SignalRule{
		ID:          "high-priority",
		SignalTypes: []types.SignalType{types.SignalContentSpam},
		Conditions: []types.SignalCondition{
			{Field: "confidence", Operator: types.OpGreaterThan, Value: 0.5},
		},
		Actions:  []types.SignalAction{{ActionType: types.ActionRemoveContent}},
		Priority: 1,
		Enabled:  true,
	})

	signal := types.Signal{SignalType: types.SignalContentSpam, Severity: types.SeverityMedium, Confidence: 0.7}
	actions := engine.Evaluate(signal)

	require.Len(t, actions, 2)
	assert.Equal(t, types.ActionRemoveContent, actions[0].ActionType)
	assert.Equal(t, types.ActionFlagForReview, actions[1].ActionType)
}

func TestStore_MatchedRuleActionsPublishOnBus(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.CleanupInterval = time.Hour

	rules := NewRuleEngine()
	rules.AddRule(types.SignalRule{
		ID:          "spam-flag",
		SignalTypes: []types.SignalType{types.SignalContentSpam},
		Actions:     []types.SignalAction{{ActionType: types.ActionFlagForReview}},
		Priority:    1,
		Enabled:     true,
	})
	runner := NewPipelineRunner(2, nil)
	store := NewStore(cfg, rules, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	sub := store.Subscribe()
	defer store.Unsubscribe(sub.ID)

	signal := types.Signal{
		ID:         uuid.New(),
		SignalType: types.SignalContentSpam,
		Severity:   types.SeverityMedium,
		Confidence: 0.6,
		Timestamp:  time.Now(),
	}
	require.NoError(t, store.AddSignal(ctx, signal))

	select {
	case env := <-sub.Ch:
		require.NotNil(t, env.Result)
		require.NotNil(t, env.Result.FinalDecision)
		require.Len(t, env.Result.FinalDecision.ActionsTaken, 1)
		assert.Equal(t, types.ActionFlagForReview, env.Result.FinalDecision.ActionsTaken[0].ActionType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rule-action publish")
	}
}

func TestResultBus_LossyBroadcast(t *testing.T) {
	bus := NewResultBus()
	sub := bus.Subscribe()

	for i := 0; i < resultBusBuffer+10; i++ {
		bus.Publish(types.PipelineResult{PipelineID: "p", SignalID: uuid.New().String()})
	}

	received := 0
	sawGap := false
	for {
		select {
		case env := <-sub.Ch:
			received++
			if env.Gap {
				sawGap = true
			}
		default:
			goto done
		}
	}
done:
	assert.LessOrEqual(t, received, resultBusBuffer)
	_ = sawGap
}
