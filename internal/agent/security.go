package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
)

// findingPrefix marks scanner output lines that describe a violation.
const findingPrefix = "FINDING:"

// SecurityAgent runs the security scanner. Unlike the other agents it can
// succeed at the call level while still surfacing a business/policy
// violation: scanner findings are attached to the result as a conflict
// marker, which pauses the workflow for human adjudication instead of going
// through ordinary failure handling.
type SecurityAgent struct {
	*BaseAgent
}

// NewSecurityAgent creates the security scanner.
func NewSecurityAgent(logger zerolog.Logger, opts ...Option) *SecurityAgent {
	return &SecurityAgent{newBase("security-scanner", domain.RoleSecurity, defaultDependencies[domain.RoleSecurity], logger, opts...)}
}

// Execute runs the scan and lifts findings from the output into a conflict
// marker on the result.
func (a *SecurityAgent) Execute(ctx context.Context, task *domain.AgentTask) (*domain.TaskResult, error) {
	result, err := a.BaseAgent.Execute(ctx, task)
	if result == nil {
		return nil, err
	}

	findings := parseFindings(result.Output)
	if len(findings) > 0 {
		result.Success = false
		result.Metadata = &domain.ResultMetadata{
			Conflict: &domain.ConflictMarker{
				Type:     "security",
				Severity: constants.SeverityCritical,
				Findings: findings,
			},
		}
		a.logger.Warn().
			Str("task_id", task.ID).
			Int("findings", len(findings)).
			Msg("security findings detected")
	}

	return result, err
}

// parseFindings extracts FINDING: lines from scanner output.
func parseFindings(output string) []string {
	var findings []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, findingPrefix); ok {
			findings = append(findings, strings.TrimSpace(rest))
		}
	}
	return findings
}
