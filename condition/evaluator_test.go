package condition

import (
	"testing"
	"time"

	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *Evaluator {
	caches, err := cache.NewCacheManager(cache.DefaultConfig())
	require.NoError(t, err)
	return NewEvaluator(caches)
}

func cond(ct model.ConditionType, expr string) model.TransitionCondition {
	return model.TransitionCondition{Type: ct, Expression: expr}
}

func TestBuiltinConditions(t *testing.T) {
	e := newEvaluator(t)
	success := map[string]any{model.LAST_ACTION_RESULT_KEY: true}
	failure := map[string]any{model.LAST_ACTION_RESULT_KEY: false}
	missing := map[string]any{}
	notBool := map[string]any{model.LAST_ACTION_RESULT_KEY: "yes"}

	for scenario, tc := range map[string]struct {
		cond     model.TransitionCondition
		vars     map[string]any
		expected bool
	}{
		"always":                        {cond(model.CONDITION_ALWAYS, ""), missing, true},
		"never":                         {cond(model.CONDITION_NEVER, ""), success, false},
		"on success after success":      {cond(model.CONDITION_ON_SUCCESS, ""), success, true},
		"on success after failure":      {cond(model.CONDITION_ON_SUCCESS, ""), failure, false},
		"on success without outcome":    {cond(model.CONDITION_ON_SUCCESS, ""), missing, true},
		"on success with non bool":      {cond(model.CONDITION_ON_SUCCESS, ""), notBool, true},
		"on failure after failure":      {cond(model.CONDITION_ON_FAILURE, ""), failure, true},
		"on failure after success":      {cond(model.CONDITION_ON_FAILURE, ""), success, false},
		"on failure without outcome":    {cond(model.CONDITION_ON_FAILURE, ""), missing, false},
		"on failure with non bool":      {cond(model.CONDITION_ON_FAILURE, ""), notBool, false},
		"custom reads variables":        {cond(model.CONDITION_CUSTOM, `count > 2 && status == "ready"`), map[string]any{"count": 3, "status": "ready"}, true},
		"custom reads context by index": {cond(model.CONDITION_CUSTOM, `context["file-name"] === "a.rs"`), map[string]any{"file-name": "a.rs"}, true},
		"custom false":                  {cond(model.CONDITION_CUSTOM, `count > 10`), map[string]any{"count": 3}, false},
	} {
		t.Run(scenario, func(t *testing.T) {
			ok, err := e.Evaluate(tc.cond, tc.vars)
			require.NoError(t, err)
			require.Equal(t, tc.expected, ok)
		})
	}
}

func TestCustomConditionErrors(t *testing.T) {
	e := newEvaluator(t)
	for scenario, expr := range map[string]string{
		"missing expression":  "",
		"syntax error":        "count >",
		"non boolean result":  "count + 1",
		"undefined reference": "nope > 1",
	} {
		t.Run(scenario, func(t *testing.T) {
			_, err := e.Evaluate(cond(model.CONDITION_CUSTOM, expr), map[string]any{"count": 1})
			var exprErr ExpressionError
			require.ErrorAs(t, err, &exprErr)
		})
	}
}

func TestCustomConditionIsCompiledOnce(t *testing.T) {
	caches, err := cache.NewCacheManager(cache.DefaultConfig())
	require.NoError(t, err)
	e := NewEvaluator(caches)

	expr := "retries < 3"
	require.False(t, caches.IsConditionCached(expr))
	for i := 0; i < 3; i++ {
		ok, err := e.Evaluate(cond(model.CONDITION_CUSTOM, expr), map[string]any{"retries": i})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.True(t, caches.IsConditionCached(expr))
	stats := caches.Stats()["conditions"]
	require.Equal(t, 1, stats.Size)
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
}

func TestRunawayExpressionIsInterrupted(t *testing.T) {
	e := newEvaluator(t)
	e.timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := e.Evaluate(cond(model.CONDITION_CUSTOM, "while (true) {}"), map[string]any{})
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestCustomConditionCannotMutateContext(t *testing.T) {
	e := newEvaluator(t)
	for scenario, expr := range map[string]string{
		"assign through context":    "(context.added = 1, true)",
		"delete through context":    "(delete context.count, true)",
		"assign nested map field":   "(item.count = 99, item.count == 99)",
		"assign nested via context": "(context.item.count = 7, true)",
		"overwrite list element":    "(tags[0] = 'z', true)",
	} {
		t.Run(scenario, func(t *testing.T) {
			vars := map[string]any{
				"count": 1,
				"item":  map[string]any{"count": 1},
				"tags":  []any{"a"},
			}
			ok, err := e.Evaluate(cond(model.CONDITION_CUSTOM, expr), vars)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, map[string]any{
				"count": 1,
				"item":  map[string]any{"count": 1},
				"tags":  []any{"a"},
			}, vars)
		})
	}
}
