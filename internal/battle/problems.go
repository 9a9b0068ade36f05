// internal/battle/problems.go
package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jason-s-yu/codeduel/internal/models"
)

// StaticPool is a read-only ProblemPool held in memory, typically loaded from a JSON file.
type StaticPool struct {
	problems []models.Problem
	byID     map[string]*models.Problem
}

func NewStaticPool(problems []models.Problem) *StaticPool {
	p := &StaticPool{
		problems: problems,
		byID:     make(map[string]*models.Problem, len(problems)),
	}
	for i := range problems {
		p.byID[problems[i].ID] = &problems[i]
	}
	return p
}

// LoadProblemsFile reads a JSON array of problems. Test cases may name their expected
// output with any of the field spellings the problem bank has used.
func LoadProblemsFile(path string) (*StaticPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems file: %w", err)
	}
	var problems []models.Problem
	if err := json.Unmarshal(data, &problems); err != nil {
		return nil, fmt.Errorf("decode problems file %s: %w", path, err)
	}
	return NewStaticPool(problems), nil
}

// EligibleProblems matches language case-insensitively; an empty language matches all.
func (p *StaticPool) EligibleProblems(_ context.Context, language string, difficulty models.Difficulty) ([]models.Problem, error) {
	var out []models.Problem
	for _, prob := range p.problems {
		if language != "" && !strings.EqualFold(prob.Language, language) {
			continue
		}
		if prob.Difficulty != difficulty {
			continue
		}
		out = append(out, prob)
	}
	return out, nil
}

func (p *StaticPool) GetProblem(_ context.Context, id string) (*models.Problem, error) {
	prob, ok := p.byID[id]
	if !ok {
		return nil, ErrProblemNotFound.Withf("problem %s not found", id)
	}
	cp := *prob
	return &cp, nil
}

// Problems returns every problem in the pool, in file order.
func (p *StaticPool) Problems() []models.Problem {
	return append([]models.Problem(nil), p.problems...)
}
