package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandString(t *testing.T) {
	variables := map[string]interface{}{
		"config": map[string]interface{}{
			"retries": 3,
			"model":   "small",
		},
		"user": map[string]interface{}{
			"name": "ann",
		},
	}

	testCases := []struct {
		description string
		input       string
		expect      interface{}
	}{
		{
			description: "whole template keeps the value type",
			input:       "{{ config.retries }}",
			expect:      3,
		},
		{
			description: "embedded template stringifies",
			input:       "retry up to {{ config.retries }} times",
			expect:      "retry up to 3 times",
		},
		{
			description: "multiple tokens",
			input:       "{{ user.name }} uses {{ config.model }}",
			expect:      "ann uses small",
		},
		{
			description: "unresolved token stays verbatim",
			input:       "hello {{ missing.attr }}",
			expect:      "hello {{ missing.attr }}",
		},
		{
			description: "expression inside template",
			input:       "{{ config.retries + 1 }}",
			expect:      4,
		},
	}

	for _, testCase := range testCases {
		actual := ExpandString(testCase.input, variables)
		assert.EqualValues(t, testCase.expect, actual, testCase.description)
	}
}

func TestExpand(t *testing.T) {
	variables := map[string]interface{}{
		"order": map[string]interface{}{
			"id":    "A-17",
			"total": 42.5,
		},
	}
	input := map[string]interface{}{
		"summary": "order {{ order.id }}",
		"details": []interface{}{
			"{{ order.total }}",
			map[string]interface{}{"plain": "text"},
		},
		"count": 2,
	}
	actual, err := Expand(input, variables)
	assert.Nil(t, err)
	assert.EqualValues(t, map[string]interface{}{
		"summary": "order A-17",
		"details": []interface{}{
			42.5,
			map[string]interface{}{"plain": "text"},
		},
		"count": 2,
	}, actual)
}
