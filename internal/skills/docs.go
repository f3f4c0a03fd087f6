// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// Documentation checks run against recorded knowledge, not repository
// source: the unit of inspection is the component inventory and lesson
// log the analyzer extracted, so a violation means the knowledge base
// entry is underdocumented.

type docViolation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type docFileResult struct {
	File       string         `json:"file"`
	Compliant  bool           `json:"compliant"`
	Violations []docViolation `json:"violations"`
}

// complianceThreshold separates compliant from non_compliant scores.
const complianceThreshold = 0.8

// CheckDocumentationStandards scores how well a repository's recorded
// knowledge is documented.
type CheckDocumentationStandards struct {
	base
	deps Deps
}

func NewCheckDocumentationStandards(deps Deps) *CheckDocumentationStandards {
	return &CheckDocumentationStandards{
		base: base{
			id:          "check_documentation_standards",
			name:        "Check Documentation Standards",
			description: "Score the documentation completeness of a repository's recorded components and lessons.",
			tags:        []string{"documentation", "standards"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository"},
				"properties": map[string]any{
					"repository":     map[string]any{"type": "string"},
					"check_all_docs": map[string]any{"type": "boolean"},
				},
			},
			examples: []skill.Example{{
				Description: "Check one repository",
				Input:       map[string]any{"repository": "acme/api"},
			}},
		},
		deps: deps,
	}
}

func (s *CheckDocumentationStandards) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{
			"repository":       repo,
			"status":           "unknown",
			"compliance_score": 0.0,
			"file_results":     []docFileResult{},
			"summary": map[string]any{
				"total_files_checked": 0,
				"total_violations":    0,
				"by_severity":         map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0},
			},
			"recommendations": []string{},
		}, err), nil
	}
	rec := doc.Repo(repo)
	if rec == nil {
		return failf("repository not tracked"), nil
	}
	checkAll := boolArg(input, "check_all_docs", false)

	var results []docFileResult
	components := rec.LatestPatterns.ReusableComponents
	if checkAll {
		components = append(append([]kb.Component{}, components...), rec.Deployment.ReusableComponents...)
	}
	for _, c := range components {
		results = append(results, checkComponent(c))
	}
	if checkAll {
		for _, l := range rec.Deployment.LessonsLearned {
			results = append(results, checkLesson(l))
		}
	}
	repoResult := checkRepoRecord(rec)
	results = append(results, repoResult)

	bySeverity := map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0}
	total := 0
	compliantCount := 0
	for _, r := range results {
		total += len(r.Violations)
		if r.Compliant {
			compliantCount++
		}
		for _, v := range r.Violations {
			bySeverity[v.Severity]++
		}
	}
	score := 1.0
	if len(results) > 0 {
		score = float64(compliantCount) / float64(len(results))
	}
	status := "compliant"
	if score < complianceThreshold {
		status = "non_compliant"
	}
	return map[string]any{
		"success":          true,
		"repository":       repo,
		"status":           status,
		"compliance_score": score,
		"file_results":     results,
		"summary": map[string]any{
			"total_files_checked": len(results),
			"total_violations":    total,
			"by_severity":         bySeverity,
		},
		"recommendations": recommendations(results),
	}, nil
}

func checkComponent(c kb.Component) docFileResult {
	r := docFileResult{File: c.Name, Compliant: true, Violations: []docViolation{}}
	if strings.TrimSpace(c.Description) == "" {
		r.Violations = append(r.Violations, docViolation{
			Rule:     "component-description",
			Severity: "high",
			Message:  fmt.Sprintf("component %q has no description", c.Name),
		})
	}
	if len(c.Files) == 0 {
		r.Violations = append(r.Violations, docViolation{
			Rule:     "component-files",
			Severity: "medium",
			Message:  fmt.Sprintf("component %q lists no implementing files", c.Name),
		})
	}
	r.Compliant = len(r.Violations) == 0
	return r
}

func checkLesson(l kb.Lesson) docFileResult {
	r := docFileResult{File: "lesson:" + l.ID, Compliant: true, Violations: []docViolation{}}
	if strings.TrimSpace(l.Context) == "" {
		r.Violations = append(r.Violations, docViolation{
			Rule:     "lesson-context",
			Severity: "low",
			Message:  "lesson has no context describing when it applies",
		})
		r.Compliant = false
	}
	return r
}

func checkRepoRecord(rec *kb.RepoRecord) docFileResult {
	r := docFileResult{File: "repository", Compliant: true, Violations: []docViolation{}}
	if strings.TrimSpace(rec.LatestPatterns.ProblemDomain) == "" {
		r.Violations = append(r.Violations, docViolation{
			Rule:     "problem-domain",
			Severity: "high",
			Message:  "repository has no recorded problem domain",
		})
	}
	if len(rec.Deployment.Scripts) > 0 && rec.Deployment.CICDPlatform == "" {
		r.Violations = append(r.Violations, docViolation{
			Rule:     "cicd-platform",
			Severity: "medium",
			Message:  "deployment scripts recorded without naming the CI/CD platform",
		})
	}
	r.Compliant = len(r.Violations) == 0
	return r
}

func recommendations(results []docFileResult) []string {
	byRule := make(map[string]int)
	for _, r := range results {
		for _, v := range r.Violations {
			byRule[v.Rule]++
		}
	}
	var recs []string
	if byRule["component-description"] > 0 {
		recs = append(recs, fmt.Sprintf("Describe the %d component(s) missing descriptions.", byRule["component-description"]))
	}
	if byRule["component-files"] > 0 {
		recs = append(recs, "List implementing files for every reusable component.")
	}
	if byRule["lesson-context"] > 0 {
		recs = append(recs, "Add context to lessons so readers know when they apply.")
	}
	if byRule["problem-domain"] > 0 {
		recs = append(recs, "Record the repository's problem domain.")
	}
	if byRule["cicd-platform"] > 0 {
		recs = append(recs, "Name the CI/CD platform behind the recorded deployment scripts.")
	}
	if recs == nil {
		recs = []string{}
	}
	sort.Strings(recs)
	return recs
}

// ValidateDocumentationUpdate checks whether recent analysis activity
// touched documentation alongside code.
type ValidateDocumentationUpdate struct {
	base
	deps Deps
}

func NewValidateDocumentationUpdate(deps Deps) *ValidateDocumentationUpdate {
	return &ValidateDocumentationUpdate{
		base: base{
			id:          "validate_documentation_update",
			name:        "Validate Documentation Update",
			description: "Check whether recent commits recorded for a repository touched documentation alongside code.",
			tags:        []string{"documentation", "validation"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository"},
				"properties": map[string]any{
					"repository": map[string]any{"type": "string"},
					"days":       map[string]any{"type": "integer", "minimum": 1},
				},
			},
			examples: []skill.Example{{
				Description: "Validate the last week of activity",
				Input:       map[string]any{"repository": "acme/api", "days": 7},
			}},
		},
		deps: deps,
	}
}

var docExtensions = map[string]bool{".md": true, ".rst": true, ".adoc": true, ".txt": true}

func (s *ValidateDocumentationUpdate) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{
			"repository": repo,
			"validation": map[string]any{"status": "unknown", "message": "knowledge base unavailable"},
			"changes":    map[string]any{"code_files": 0, "doc_files": 0},
			"warnings":   []string{},
		}, err), nil
	}
	rec := doc.Repo(repo)
	if rec == nil {
		return failf("repository not tracked"), nil
	}
	days := intArg(input, "days", 7)
	cutoff := s.deps.now().Add(-time.Duration(days) * 24 * time.Hour)

	codeFiles, docFiles := 0, 0
	seen := make(map[string]bool)
	for _, snap := range rec.History {
		if snap.Timestamp.Before(cutoff) {
			continue
		}
		for _, c := range snap.Patterns.ReusableComponents {
			for _, f := range c.Files {
				if seen[f] {
					continue
				}
				seen[f] = true
				if docExtensions[strings.ToLower(path.Ext(f))] {
					docFiles++
				} else {
					codeFiles++
				}
			}
		}
	}

	status, message := "ok", fmt.Sprintf("documentation kept pace over the last %d day(s)", days)
	warnings := []string{}
	switch {
	case codeFiles == 0 && docFiles == 0:
		message = fmt.Sprintf("no recorded analysis activity in the last %d day(s)", days)
	case docFiles == 0:
		status = "warning"
		message = "recent code changes recorded without documentation changes"
		warnings = append(warnings, fmt.Sprintf("%d code file(s) changed with no documentation update", codeFiles))
	}
	return map[string]any{
		"success":    true,
		"repository": repo,
		"validation": map[string]any{"status": status, "message": message},
		"changes":    map[string]any{"code_files": codeFiles, "doc_files": docFiles},
		"warnings":   warnings,
	}, nil
}
