// Package roles maps natural-language tasks to role-specialized agent
// definitions. Classification is ordered keyword matching with fixed
// per-category confidences; it never computes statistics over the text.
package roles

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies one catalog entry.
type Role string

const (
	RoleArchitect Role = "architect"
	RoleDebugger  Role = "debugger"
	RoleValidator Role = "validator"
	RoleReviewer  Role = "reviewer"
	RoleDeveloper Role = "developer"
)

// Definition is an immutable catalog entry created at startup.
type Definition struct {
	Role         Role
	Description  string
	SystemPrompt string

	// AllowedTools is the tool allowlist for agents of this role.
	AllowedTools []string

	// Timeout is the default per-agent deadline.
	Timeout time.Duration

	// Priority orders roles when slots are limited (higher first).
	Priority int
}

// Classification is the result of mapping a task to roles.
type Classification struct {
	PrimaryRole     Role
	SupportingRoles []Role
	Confidence      float64
	Reasoning       string
}

// ValidationResult reports every violated combination rule.
type ValidationResult struct {
	Valid  bool
	Issues []string
}

// UnknownRoleError is returned when a role id is not in the catalog.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role: %s", e.Role)
}

// MaxCombination caps how many roles one run may combine.
const MaxCombination = 5

// category is one ordered classification rule: the first category whose
// keyword set matches wins.
type category struct {
	role       Role
	keywords   []string
	confidence float64
	supporting []Role
}

// Matching order is fixed: design, debug, test, review, then implement as
// the fallback.
var categories = []category{
	{
		role:       RoleArchitect,
		keywords:   []string{"design", "architect", "structure", "restructure", "plan", "blueprint", "schema"},
		confidence: 0.85,
		supporting: []Role{RoleDeveloper, RoleReviewer},
	},
	{
		role:       RoleDebugger,
		keywords:   []string{"fix", "bug", "debug", "leak", "crash", "broken", "regression", "error"},
		confidence: 0.85,
		supporting: []Role{RoleValidator},
	},
	{
		role:       RoleValidator,
		keywords:   []string{"test", "coverage", "verify", "validate", "assert"},
		confidence: 0.8,
		supporting: []Role{RoleDeveloper},
	},
	{
		role:       RoleReviewer,
		keywords:   []string{"review", "audit", "lint", "quality", "inspect"},
		confidence: 0.8,
		supporting: []Role{RoleDeveloper},
	},
	{
		role:       RoleDeveloper,
		keywords:   []string{"implement", "build", "create", "add", "feature", "write", "refactor"},
		confidence: 0.75,
		supporting: []Role{RoleValidator, RoleReviewer},
	},
}

// complementary fills remaining recommendation slots per primary role.
var complementary = map[Role][]Role{
	RoleArchitect: {RoleDeveloper, RoleReviewer, RoleValidator},
	RoleDebugger:  {RoleValidator, RoleReviewer, RoleDeveloper},
	RoleValidator: {RoleDeveloper, RoleReviewer, RoleDebugger},
	RoleReviewer:  {RoleDeveloper, RoleValidator, RoleArchitect},
	RoleDeveloper: {RoleValidator, RoleReviewer, RoleArchitect},
}

// Catalog holds the role definitions.
type Catalog struct {
	defs map[Role]Definition
}

// NewCatalog builds the static role catalog.
func NewCatalog() *Catalog {
	defs := map[Role]Definition{
		RoleArchitect: {
			Role:         RoleArchitect,
			Description:  "Designs system structure and interfaces before code is written",
			SystemPrompt: "You are a software architect. Produce designs, interfaces, and structural plans; do not write implementation code.",
			AllowedTools: []string{"read_file", "list_files", "glob", "grep", "write_file"},
			Timeout:      5 * time.Minute,
			Priority:     80,
		},
		RoleDebugger: {
			Role:         RoleDebugger,
			Description:  "Locates and fixes defects, leaks, and crashes",
			SystemPrompt: "You are a debugger. Reproduce the failure, isolate the root cause, and apply the smallest correct fix.",
			AllowedTools: []string{"read_file", "list_files", "glob", "grep", "edit_file", "write_file", "run_command", "git_diff", "git_status"},
			Timeout:      10 * time.Minute,
			Priority:     90,
		},
		RoleValidator: {
			Role:         RoleValidator,
			Description:  "Writes and runs tests, verifies behavior against requirements",
			SystemPrompt: "You are a test engineer. Write focused tests, run them, and report coverage gaps.",
			AllowedTools: []string{"read_file", "list_files", "glob", "grep", "write_file", "run_command"},
			Timeout:      10 * time.Minute,
			Priority:     70,
		},
		RoleReviewer: {
			Role:         RoleReviewer,
			Description:  "Reviews changes for correctness, clarity, and risk",
			SystemPrompt: "You are a code reviewer. Read the changes, flag defects and risks, and suggest concrete improvements.",
			AllowedTools: []string{"read_file", "list_files", "glob", "grep", "git_diff", "git_status"},
			Timeout:      5 * time.Minute,
			Priority:     60,
		},
		RoleDeveloper: {
			Role:         RoleDeveloper,
			Description:  "Implements features and general code changes",
			SystemPrompt: "You are a software developer. Implement the requested change completely, following the existing code style.",
			AllowedTools: []string{"read_file", "list_files", "glob", "grep", "write_file", "edit_file", "delete_file", "run_command", "git_status", "git_diff", "git_commit"},
			Timeout:      10 * time.Minute,
			Priority:     85,
		},
	}
	return &Catalog{defs: defs}
}

// Roles returns all role ids in the catalog, in priority order.
func (c *Catalog) Roles() []Role {
	out := make([]Role, 0, len(c.defs))
	for _, cat := range categories {
		if _, ok := c.defs[cat.role]; ok {
			out = append(out, cat.role)
		}
	}
	return out
}

// Create returns the definition for a role id.
func (c *Catalog) Create(role Role) (Definition, error) {
	def, ok := c.defs[role]
	if !ok {
		return Definition{}, &UnknownRoleError{Role: role}
	}
	return def, nil
}

// Classify maps a task to a primary role plus supporting roles. The first
// matching category in the fixed order wins; tasks matching nothing fall
// back to developer at low confidence.
func (c *Catalog) Classify(task string) Classification {
	lowered := strings.ToLower(task)

	for _, cat := range categories {
		for _, kw := range cat.keywords {
			if strings.Contains(lowered, kw) {
				return Classification{
					PrimaryRole:     cat.role,
					SupportingRoles: append([]Role(nil), cat.supporting...),
					Confidence:      cat.confidence,
					Reasoning:       fmt.Sprintf("task mentions %q, matching the %s category", kw, cat.role),
				}
			}
		}
	}

	return Classification{
		PrimaryRole:     RoleDeveloper,
		SupportingRoles: []Role{RoleValidator},
		Confidence:      0.5,
		Reasoning:       "no category keywords matched; defaulting to developer",
	}
}

// Recommend returns up to maxAgents roles for a task: the primary role, its
// supporting roles, then complementary fills. Never duplicates a role.
func (c *Catalog) Recommend(task string, maxAgents int) []Role {
	if maxAgents <= 0 {
		return nil
	}

	cls := c.Classify(task)

	seen := make(map[Role]bool)
	out := make([]Role, 0, maxAgents)
	add := func(r Role) {
		if len(out) < maxAgents && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}

	add(cls.PrimaryRole)
	for _, r := range cls.SupportingRoles {
		add(r)
	}
	for _, r := range complementary[cls.PrimaryRole] {
		add(r)
	}
	return out
}

// ValidateCombination checks a proposed role list, returning every violated
// rule rather than the first.
func (c *Catalog) ValidateCombination(list []Role) ValidationResult {
	var issues []string

	if len(list) == 0 {
		issues = append(issues, "At least one agent role is required")
	}
	if len(list) > MaxCombination {
		issues = append(issues, fmt.Sprintf("Too many agents (maximum %d)", MaxCombination))
	}

	seen := make(map[Role]bool)
	for _, role := range list {
		if seen[role] {
			issues = append(issues, fmt.Sprintf("Duplicate role: %s", role))
			continue
		}
		seen[role] = true
		if _, ok := c.defs[role]; !ok {
			issues = append(issues, fmt.Sprintf("Unknown role: %s", role))
		}
	}

	return ValidationResult{Valid: len(issues) == 0, Issues: issues}
}
