package supervisor

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chrysochos/society/internal/exec"
	"github.com/chrysochos/society/pkg/models"
)

// teamSpec is the YAML shape the planning capability returns when asked
// to assemble a team.
type teamSpec struct {
	Team []teamMember `yaml:"team"`
}

type teamMember struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// planSpec is the YAML shape the planning capability returns when asked
// to break the purpose into tasks. Each worker carries at most one task.
type planSpec struct {
	Tasks []plannedTask `yaml:"tasks"`
}

type plannedTask struct {
	Worker    string   `yaml:"worker"`
	Task      string   `yaml:"task"`
	Context   string   `yaml:"context"`
	DependsOn []string `yaml:"dependsOn"`
}

// defaultWorkerID names the single worker used when team analysis yields
// nothing usable.
const defaultWorkerID = "worker-1"

// planner drives the planning capability and repairs its output so the
// scheduler never sees an unbuildable plan.
type planner struct {
	capability exec.WorkerExecutor
	logger     *DebugLogger
}

func newPlanner(capability exec.WorkerExecutor, logger *DebugLogger) *planner {
	return &planner{capability: capability, logger: logger}
}

// analyzeTeam asks the capability which workers the purpose needs.
// Malformed or empty output falls back to a single general-purpose worker;
// analysis never fails the purpose.
func (p *planner) analyzeTeam(ctx context.Context, purpose *models.Purpose) []models.AgentIdentity {
	prompt := teamPrompt(purpose)
	raw, status, err := p.capability.RunTask(ctx, prompt, purpose.Context)
	if err != nil || status != models.TaskStatusCompleted {
		p.logger.Log("[planner] team analysis failed (status=%s err=%v), using default team", status, err)
		return defaultTeam()
	}

	var spec teamSpec
	if err := yaml.Unmarshal([]byte(extractYAML(raw)), &spec); err != nil {
		p.logger.Log("[planner] team analysis produced unparseable output, using default team: %v", err)
		return defaultTeam()
	}

	seen := make(map[string]bool)
	var team []models.AgentIdentity
	for _, m := range spec.Team {
		id := strings.TrimSpace(m.ID)
		if id == "" || id == models.AddressSupervisor || id == models.AddressBroadcast {
			p.logger.Log("[planner] skipping team member with reserved or empty id %q", m.ID)
			continue
		}
		if seen[id] {
			p.logger.Log("[planner] skipping duplicate team member %q", id)
			continue
		}
		seen[id] = true
		team = append(team, models.AgentIdentity{
			ID:          id,
			Role:        models.RoleWorker,
			Description: m.Description,
		})
	}

	if len(team) == 0 {
		p.logger.Log("[planner] team analysis returned no usable members, using default team")
		return defaultTeam()
	}
	return team
}

// planTasks asks the capability to break the purpose into one task per
// worker. The result is sanitized: tasks for unknown workers are dropped,
// unknown dependencies are stripped, and a worker named twice keeps only
// its first task. If nothing usable remains, every worker gets the purpose
// itself as its task.
func (p *planner) planTasks(ctx context.Context, purpose *models.Purpose, team []models.AgentIdentity) []*models.TaskNode {
	prompt := planPrompt(purpose, team)
	raw, status, err := p.capability.RunTask(ctx, prompt, purpose.Context)
	if err != nil || status != models.TaskStatusCompleted {
		p.logger.Log("[planner] task planning failed (status=%s err=%v), using fallback plan", status, err)
		return fallbackPlan(purpose, team)
	}

	var spec planSpec
	if err := yaml.Unmarshal([]byte(extractYAML(raw)), &spec); err != nil {
		p.logger.Log("[planner] task planning produced unparseable output, using fallback plan: %v", err)
		return fallbackPlan(purpose, team)
	}

	known := make(map[string]bool, len(team))
	for _, member := range team {
		known[member.ID] = true
	}

	assigned := make(map[string]bool)
	var nodes []*models.TaskNode
	for _, t := range spec.Tasks {
		worker := strings.TrimSpace(t.Worker)
		if !known[worker] {
			p.logger.Log("[planner] dropping task for unknown worker %q", t.Worker)
			continue
		}
		if assigned[worker] {
			p.logger.Log("[planner] worker %q already has a task, dropping extra", worker)
			continue
		}
		if strings.TrimSpace(t.Task) == "" {
			p.logger.Log("[planner] dropping empty task for worker %q", worker)
			continue
		}
		assigned[worker] = true
		nodes = append(nodes, &models.TaskNode{
			WorkerID:     worker,
			Task:         strings.TrimSpace(t.Task),
			Context:      t.Context,
			Dependencies: t.DependsOn,
			Status:       models.TaskStatusPending,
		})
	}

	// Strip dependencies that never made it into the plan. A dangling
	// dependency would otherwise wedge its dependent forever.
	for _, node := range nodes {
		var deps []string
		for _, dep := range node.Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == node.WorkerID {
				p.logger.Log("[planner] worker %q depends on itself, stripping", node.WorkerID)
				continue
			}
			if !assigned[dep] {
				p.logger.Log("[planner] worker %q depends on unplanned %q, stripping", node.WorkerID, dep)
				continue
			}
			deps = append(deps, dep)
		}
		node.Dependencies = deps
	}

	if len(nodes) == 0 {
		p.logger.Log("[planner] plan contained no usable tasks, using fallback plan")
		return fallbackPlan(purpose, team)
	}
	return nodes
}

func defaultTeam() []models.AgentIdentity {
	return []models.AgentIdentity{{
		ID:          defaultWorkerID,
		Role:        models.RoleWorker,
		Description: "general-purpose worker",
	}}
}

// fallbackPlan gives every worker the whole purpose with no dependencies.
func fallbackPlan(purpose *models.Purpose, team []models.AgentIdentity) []*models.TaskNode {
	nodes := make([]*models.TaskNode, 0, len(team))
	for _, member := range team {
		nodes = append(nodes, &models.TaskNode{
			WorkerID: member.ID,
			Task:     purpose.Description,
			Context:  purpose.Context,
			Status:   models.TaskStatusPending,
		})
	}
	return nodes
}

func teamPrompt(purpose *models.Purpose) string {
	var b strings.Builder
	b.WriteString("Decide which workers are needed for this goal.\n\n")
	b.WriteString("Goal: " + purpose.Description + "\n")
	writePurposeDetails(&b, purpose)
	b.WriteString("\nAnswer with YAML only:\n")
	b.WriteString("team:\n  - id: <short-worker-id>\n    description: <what this worker does>\n")
	return b.String()
}

func planPrompt(purpose *models.Purpose, team []models.AgentIdentity) string {
	var b strings.Builder
	b.WriteString("Break this goal into one task per worker.\n\n")
	b.WriteString("Goal: " + purpose.Description + "\n")
	writePurposeDetails(&b, purpose)
	b.WriteString("\nWorkers:\n")
	for _, member := range team {
		fmt.Fprintf(&b, "  - %s: %s\n", member.ID, member.Description)
	}
	b.WriteString("\nAnswer with YAML only:\n")
	b.WriteString("tasks:\n  - worker: <worker-id>\n    task: <what to do>\n    context: <background>\n    dependsOn: [<worker-ids that must finish first>]\n")
	return b.String()
}

func writePurposeDetails(b *strings.Builder, purpose *models.Purpose) {
	for _, c := range purpose.Constraints {
		b.WriteString("Constraint: " + c + "\n")
	}
	for _, s := range purpose.SuccessCriteria {
		b.WriteString("Success criterion: " + s + "\n")
	}
}

// extractYAML strips a markdown code fence if the capability wrapped its
// answer in one.
func extractYAML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```yaml")
	trimmed = strings.TrimPrefix(trimmed, "```yml")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
