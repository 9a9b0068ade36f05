// internal/executor/piston.go
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PistonClient executes code through a Piston-compatible HTTP API
// (POST {BaseURL}/api/v2/execute).
type PistonClient struct {
	BaseURL string
	// Versions pins a runtime version per language; languages not listed use "*".
	Versions map[string]string
	HTTP     *http.Client
}

// NewPistonClient returns a client with a bounded per-request timeout.
func NewPistonClient(baseURL string, timeout time.Duration) *PistonClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PistonClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Versions: map[string]string{},
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type pistonResponse struct {
	Run     *pistonStage `json:"run"`
	Compile *pistonStage `json:"compile"`
	Message string       `json:"message"`
}

func (p *PistonClient) Execute(ctx context.Context, req Request) (Result, error) {
	version := p.Versions[req.Language]
	if version == "" {
		version = "*"
	}
	body, err := json.Marshal(pistonRequest{
		Language: req.Language,
		Version:  version,
		Files:    []pistonFile{{Content: req.Source}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode piston request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v2/execute", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build piston request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("piston request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read piston response: %w", err)
	}

	var out pistonResponse
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
		return Result{}, fmt.Errorf("decode piston response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return Result{}, fmt.Errorf("piston returned %d: %s", resp.StatusCode, msg)
	}

	if out.Compile != nil && out.Compile.Code != nil && *out.Compile.Code != 0 {
		stderr := out.Compile.Stderr
		if stderr == "" {
			stderr = fmt.Sprintf("compilation failed with exit code %d", *out.Compile.Code)
		}
		return Result{Stdout: out.Compile.Stdout, Stderr: stderr}, nil
	}
	if out.Run == nil {
		return Result{}, fmt.Errorf("piston response missing run stage")
	}

	res := Result{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}
	if res.Stderr == "" && out.Run.Signal != nil && *out.Run.Signal != "" {
		res.Stderr = "terminated by signal " + *out.Run.Signal
	}
	return res, nil
}
