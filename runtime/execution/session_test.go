package execution_test

import (
	"testing"

	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/stretchr/testify/assert"
)

func TestSessionSetTyped(t *testing.T) {
	type testCase struct {
		name         string
		declaredType string
		value        interface{}
		expected     interface{}
		expectError  bool
	}

	tests := []testCase{{
		name:         "number from int",
		declaredType: "Number",
		value:        3,
		expected:     float64(3),
	}, {
		name:         "number from numeric string",
		declaredType: "Number",
		value:        "3",
		expected:     float64(3),
	}, {
		name:         "boolean",
		declaredType: "Boolean",
		value:        true,
		expected:     true,
	}, {
		name:         "string array from untyped slice",
		declaredType: "Array<String>",
		value:        []interface{}{"a", "b"},
		expected:     []string{"a", "b"},
	}, {
		name:         "untyped write passes through",
		declaredType: "",
		value:        map[string]interface{}{"k": 1},
		expected:     map[string]interface{}{"k": 1},
	}, {
		name:         "conversion failure",
		declaredType: "Number",
		value:        "not a number",
		expectError:  true,
	}, {
		name:         "unregistered type",
		declaredType: "Duration",
		value:        "30s",
		expectError:  true,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := execution.NewSession("s1", execution.WithTypes(extension.NewTypes()))
			session.Set("key", "previous")

			err := session.SetTyped("key", tc.declaredType, tc.value)
			actual, _ := session.Get("key")
			if tc.expectError {
				assert.Error(t, err)
				// failed writes leave the previous value in place
				assert.EqualValues(t, "previous", actual)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, actual)
		})
	}
}

func TestSessionTypedWithoutRegistry(t *testing.T) {
	session := execution.NewSession("s1")
	err := session.SetTyped("key", "Number", 1)
	assert.Error(t, err)
}

func TestSessionListeners(t *testing.T) {
	session := execution.NewSession("s1")
	var seenKey string
	var seenOld, seenNew interface{}
	session.RegisterListeners(func(_ *execution.Session, key string, oldVal, newVal interface{}) {
		seenKey, seenOld, seenNew = key, oldVal, newVal
	})

	session.Set("count", 1)
	assert.EqualValues(t, "count", seenKey)
	assert.Nil(t, seenOld)
	assert.EqualValues(t, 1, seenNew)

	session.Set("count", 2)
	assert.EqualValues(t, 1, seenOld)
	assert.EqualValues(t, 2, seenNew)
}

func TestSessionExpand(t *testing.T) {
	session := execution.NewSession("s1")
	session.Set("config", map[string]interface{}{"url": "https://example.com", "retries": 3})

	// a whole-string template keeps the referenced value's type
	value, err := session.Expand("{{ config.retries }}")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, value)

	// embedded templates are stringified in place
	value, err = session.Expand("GET {{ config.url }}/orders")
	assert.NoError(t, err)
	assert.EqualValues(t, "GET https://example.com/orders", value)

	// unresolvable tokens stay verbatim
	value, err = session.Expand("{{ ghost.url }}")
	assert.NoError(t, err)
	assert.EqualValues(t, "{{ ghost.url }}", value)
}

func TestSessionCloneSharesListenersNotState(t *testing.T) {
	session := execution.NewSession("s1")
	session.Set("a", 1)
	clone := session.Clone()

	clone.Set("a", 2)
	value, _ := session.Get("a")
	assert.EqualValues(t, 1, value)
}
