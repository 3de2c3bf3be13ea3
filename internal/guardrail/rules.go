package guardrail

import (
	"sort"

	"github.com/xela07ax/spaceai-governor/internal/domain"
)

// Rule связывает действие агента с категорией риска и минимальным уровнем доверия.
type Rule struct {
	ActionID string
	Category domain.Category
	MinLevel domain.TrustLevel
	Label    string
}

// rules: статическая таблица. Действия, которых здесь нет, считаются
// информационными (read-only) и разрешены всегда.
var rules = map[string]Rule{
	// Задачи
	"create_task":   {Category: domain.CategoryTaskExecution, MinLevel: domain.TrustGuided, Label: "Create task"},
	"execute_task":  {Category: domain.CategoryTaskExecution, MinLevel: domain.TrustTrusted, Label: "Execute task"},
	"complete_task": {Category: domain.CategoryTaskExecution, MinLevel: domain.TrustTrusted, Label: "Mark task complete"},

	// Декомпозиция
	"decompose_task":  {Category: domain.CategoryDecomposition, MinLevel: domain.TrustGuided, Label: "Break task into subtasks"},
	"create_subtasks": {Category: domain.CategoryDecomposition, MinLevel: domain.TrustTrusted, Label: "Create subtasks"},

	// Навыки
	"create_skill": {Category: domain.CategorySkillCreation, MinLevel: domain.TrustTrusted, Label: "Create skill"},
	"update_skill": {Category: domain.CategorySkillCreation, MinLevel: domain.TrustTrusted, Label: "Update skill"},

	// Инструменты
	"use_tool":     {Category: domain.CategoryToolUsage, MinLevel: domain.TrustGuided, Label: "Use tool"},
	"execute_code": {Category: domain.CategoryToolUsage, MinLevel: domain.TrustAutonomous, Label: "Execute code"},
	"web_search":   {Category: domain.CategoryToolUsage, MinLevel: domain.TrustGuided, Label: "Search the web"},

	// Публикация контента
	"publish_content":  {Category: domain.CategoryContentPublishing, MinLevel: domain.TrustTrusted, Label: "Publish content"},
	"update_published": {Category: domain.CategoryContentPublishing, MinLevel: domain.TrustTrusted, Label: "Update published content"},
	"delete_content":   {Category: domain.CategoryContentPublishing, MinLevel: domain.TrustAutonomous, Label: "Delete content"},

	// Внешние системы
	"send_email":        {Category: domain.CategoryExternalActions, MinLevel: domain.TrustTrusted, Label: "Send email"},
	"call_external_api": {Category: domain.CategoryExternalActions, MinLevel: domain.TrustTrusted, Label: "Call external API"},
	"create_github_pr":  {Category: domain.CategoryExternalActions, MinLevel: domain.TrustTrusted, Label: "Open GitHub pull request"},
	"merge_github_pr":   {Category: domain.CategoryExternalActions, MinLevel: domain.TrustAutonomous, Label: "Merge GitHub pull request"},

	// Бюджет
	"spend_budget":     {Category: domain.CategorySpending, MinLevel: domain.TrustTrusted, Label: "Spend budget"},
	"purchase_service": {Category: domain.CategorySpending, MinLevel: domain.TrustAutonomous, Label: "Purchase service"},

	// Агенты
	"create_agent": {Category: domain.CategoryAgentCreation, MinLevel: domain.TrustAutonomous, Label: "Create agent"},
	"modify_agent": {Category: domain.CategoryAgentCreation, MinLevel: domain.TrustTrusted, Label: "Modify agent"},
}

func init() {
	for id, r := range rules {
		r.ActionID = id
		rules[id] = r
	}
}

// LookupRule возвращает правило для действия. false значит действие не охраняется.
func LookupRule(actionID string) (Rule, bool) {
	r, ok := rules[actionID]
	return r, ok
}

// Rules возвращает копию таблицы, отсортированную по ActionID.
func Rules() []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActionID < out[j].ActionID })
	return out
}
