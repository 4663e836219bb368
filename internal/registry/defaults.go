package registry

import "github.com/forgecrew/foreman/internal/domain"

// defaultPhases returns the built-in six-phase build catalog.
//
// Phase 0 establishes the environment, phases 1-2 build the service core,
// phase 3 hardens quality (requires both 1 and 2), phase 4 wires third-party
// integrations, and phase 5 gates launch behind a security review.
func defaultPhases() []domain.Phase {
	return []domain.Phase{
		{
			Number:      0,
			Name:        "Foundation",
			Description: "Local environment, containers, and schema baseline",
			ExitTest:    "make verify-foundation",
			Milestones: []domain.MilestoneDef{
				{
					ID:          "docker",
					Name:        "Container environment",
					Description: "Compose stack builds and starts cleanly",
				},
				{
					ID:            "database",
					Name:          "Database schema",
					Description:   "Schema migrated and seed data loaded",
					RequiredRoles: []domain.Role{domain.RoleModels},
				},
				{
					ID:            "health",
					Name:          "Health endpoints",
					Description:   "Liveness and readiness endpoints respond",
					RequiredRoles: []domain.Role{domain.RoleAPI, domain.RoleTest},
				},
				{
					ID:          "dependencies",
					Name:        "Dependency audit",
					Description: "Third-party dependencies resolved and pinned",
				},
			},
		},
		{
			Number:        1,
			Name:          "Core API",
			Description:   "Primary service endpoints and data access",
			RequiredRoles: []domain.Role{domain.RoleAPI, domain.RoleModels, domain.RoleTest},
			ExitTest:      "make verify-api",
			Milestones: []domain.MilestoneDef{
				{
					ID:            "domain-model",
					Name:          "Domain model",
					Description:   "Entities, repositories, and migrations",
					RequiredRoles: []domain.Role{domain.RoleModels},
				},
				{
					ID:            "endpoints",
					Name:          "Service endpoints",
					Description:   "CRUD endpoints with contract tests",
					RequiredRoles: []domain.Role{domain.RoleAPI, domain.RoleTest},
				},
			},
		},
		{
			Number:        2,
			Name:          "Realtime",
			Description:   "Live update channels on top of the core API",
			RequiredRoles: []domain.Role{domain.RoleRealtime, domain.RoleTest},
			ExitTest:      "make verify-realtime",
			DependsOn:     []int{1},
			Milestones: []domain.MilestoneDef{
				{
					ID:            "channels",
					Name:          "Event channels",
					Description:   "Subscription channels and fan-out",
					RequiredRoles: []domain.Role{domain.RoleRealtime},
				},
				{
					ID:            "presence",
					Name:          "Presence tracking",
					Description:   "Connection presence with reconnect handling",
					RequiredRoles: []domain.Role{domain.RoleRealtime, domain.RoleTest},
				},
			},
		},
		{
			Number:        3,
			Name:          "Quality",
			Description:   "Cross-cutting validation and load checks",
			RequiredRoles: []domain.Role{domain.RoleQuality, domain.RoleTest},
			ExitTest:      "make verify-quality",
			DependsOn:     []int{1, 2},
			Milestones: []domain.MilestoneDef{
				{
					ID:            "regression",
					Name:          "Regression suite",
					Description:   "Full regression suite green",
					RequiredRoles: []domain.Role{domain.RoleTest},
				},
				{
					ID:            "load",
					Name:          "Load validation",
					Description:   "Load profile within budget",
					RequiredRoles: []domain.Role{domain.RoleQuality},
				},
			},
		},
		{
			Number:        4,
			Name:          "Integrations",
			Description:   "Third-party service connections",
			RequiredRoles: []domain.Role{domain.RoleIntegration, domain.RoleTest},
			ExitTest:      "make verify-integrations",
			DependsOn:     []int{1},
			Milestones: []domain.MilestoneDef{
				{
					ID:            "issue-tracker",
					Name:          "Issue tracker sync",
					Description:   "Bidirectional issue tracker synchronization",
					RequiredRoles: []domain.Role{domain.RoleIntegration},
				},
				{
					ID:            "webhooks",
					Name:          "Outbound webhooks",
					Description:   "Webhook delivery with retries",
					RequiredRoles: []domain.Role{domain.RoleIntegration, domain.RoleTest},
				},
			},
		},
		{
			Number:        5,
			Name:          "Hardening",
			Description:   "Security review and launch gate",
			RequiredRoles: []domain.Role{domain.RoleSecurity, domain.RoleQuality},
			ExitTest:      "make verify-launch",
			DependsOn:     []int{3, 4},
			Milestones: []domain.MilestoneDef{
				{
					ID:            "security-scan",
					Name:          "Security scan",
					Description:   "Static and dependency scans clean",
					RequiredRoles: []domain.Role{domain.RoleSecurity},
				},
				{
					ID:            "launch-review",
					Name:          "Launch review",
					Description:   "Final operational review",
					RequiredRoles: []domain.Role{domain.RoleQuality},
				},
			},
		},
	}
}
