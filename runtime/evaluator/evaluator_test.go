package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateBool(t *testing.T) {
	variables := map[string]interface{}{
		"errorCount":  2,
		"activeState": "review",
		"errors":      []interface{}{"timeout"},
		"order": map[string]interface{}{
			"total":    120.0,
			"priority": "high",
		},
		"approved": true,
	}

	testCases := []struct {
		description string
		expr        string
		expect      bool
	}{
		{"numeric comparison", "errorCount < 3", true},
		{"numeric comparison false", "errorCount >= 3", false},
		{"strict equality rewritten", "activeState === 'review'", true},
		{"strict inequality rewritten", "activeState !== 'review'", false},
		{"template braces stripped", "{{ order.total }} > 100", true},
		{"nested property", "order.priority == 'high'", true},
		{"logical and", "approved && errorCount < 3", true},
		{"logical or", "errorCount > 10 || approved", true},
		{"negation", "!approved", false},
		{"bare boolean variable", "approved", true},
		{"non-empty collection is truthy", "errors", true},
		{"unknown variable fails closed", "missing > 1", false},
		{"malformed expression fails closed", "errorCount <<< 3", false},
		{"parenthesised comparison", "(errorCount > 10)", false},
		{"truncated expression fails closed", "(errorCount >", false},
		{"arithmetic inside guard", "errorCount + 1 == 3", true},
		{"loose numeric equality", "order.total == 120", true},
	}

	evaluator := New()
	for _, testCase := range testCases {
		actual := evaluator.EvaluateBool(testCase.expr, variables)
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestEvaluateValues(t *testing.T) {
	variables := map[string]interface{}{
		"name":  "batch",
		"count": 4,
		"items": []interface{}{"a", "b"},
	}
	evaluator := New()
	assert.EqualValues(t, 5, evaluator.Evaluate("count + 1", variables))
	assert.EqualValues(t, "batch-job", evaluator.Evaluate("name + '-job'", variables))
	assert.EqualValues(t, "b", evaluator.Evaluate("items[1]", variables))
	assert.Nil(t, evaluator.Evaluate("items[9]", variables))
}

func TestNormalize(t *testing.T) {
	assert.EqualValues(t, `a != "b"`, Normalize(`a !== 'b'`))
	assert.EqualValues(t, `a == 1`, Normalize(`{{ a }} === 1`))
}
