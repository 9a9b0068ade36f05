// internal/models/problem.go
package models

import (
	"encoding/json"
	"fmt"
)

// Problem is a round's task as supplied by the problem pool.
type Problem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Language   string     `json:"language"`
	Difficulty Difficulty `json:"difficulty"`
	TestCases  []TestCase `json:"testCases"`
}

// TestCase pairs a stdin payload with the stdout a correct program prints.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// expectedOutputKeys lists, in priority order, every field name the problem bank
// has used for the expected output.
var expectedOutputKeys = []string{"expectedOutput", "expected_output", "expected", "output"}

// UnmarshalJSON folds the known aliases for the expected output into ExpectedOutput.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode test case: %w", err)
	}

	tc.Input = ""
	tc.ExpectedOutput = ""
	if in, ok := raw["input"]; ok {
		if err := json.Unmarshal(in, &tc.Input); err != nil {
			return fmt.Errorf("decode test case input: %w", err)
		}
	}
	for _, key := range expectedOutputKeys {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, &tc.ExpectedOutput); err != nil {
			return fmt.Errorf("decode test case %s: %w", key, err)
		}
		break
	}
	return nil
}
