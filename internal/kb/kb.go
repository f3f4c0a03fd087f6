// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package kb defines the knowledge base document model.
//
// The knowledge base is a single versioned JSON document mapping repository
// identifiers ("owner/name") to per-repository records: extracted patterns,
// deployment lessons, dependency edges, runtime issues, and an append-only
// history of pattern snapshots.
package kb

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Supported schema versions. V1 documents are migrated in-memory on load;
// anything else is rejected.
const (
	SchemaV1 = "1.0"
	SchemaV2 = "2.0"
)

// Document is the root of the knowledge base.
type Document struct {
	SchemaVersion string                 `json:"schema_version"`
	Repositories  map[string]*RepoRecord `json:"repositories"`
	LastUpdated   time.Time              `json:"last_updated"`
}

// NewDocument returns an empty v2 document.
func NewDocument() *Document {
	return &Document{
		SchemaVersion: SchemaV2,
		Repositories:  make(map[string]*RepoRecord),
	}
}

// ValidateRepoID checks the two-segment "owner/name" form.
func ValidateRepoID(id string) error {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.Errorf("repository must be of the form owner/name: %q", id)
	}
	return nil
}

// RepoRecord is the v2 per-repository record.
type RepoRecord struct {
	LatestPatterns    PatternSet         `json:"latest_patterns"`
	Deployment        Deployment         `json:"deployment"`
	Dependencies      DependencyInfo     `json:"dependencies"`
	Testing           Testing            `json:"testing"`
	Security          Security           `json:"security"`
	RuntimeIssues     []RuntimeIssue     `json:"runtime_issues"`
	ProductionMetrics *ProductionMetrics `json:"production_metrics,omitempty"`
	History           []Snapshot         `json:"history"`
}

// PatternSet is the result shape produced by the pattern extractor and
// stored as latest_patterns.
type PatternSet struct {
	Patterns           []string    `json:"patterns"`
	Decisions          []string    `json:"decisions"`
	ReusableComponents []Component `json:"reusable_components"`
	Dependencies       []string    `json:"dependencies"`
	ProblemDomain      string      `json:"problem_domain"`
	Keywords           []string    `json:"keywords"`
	AnalyzedAt         time.Time   `json:"analyzed_at"`
	CommitSHA          string      `json:"commit_sha"`
}

// Deployment holds operational knowledge about a repository.
type Deployment struct {
	Scripts            []string       `json:"scripts"`
	LessonsLearned     []Lesson       `json:"lessons_learned"`
	ReusableComponents []Component    `json:"reusable_components"`
	CICDPlatform       string         `json:"ci_cd_platform"`
	Infrastructure     map[string]any `json:"infrastructure"`
}

// DependencyInfo records cross-repository relationships.
type DependencyInfo struct {
	Consumers            []Edge   `json:"consumers"`
	Derivatives          []Edge   `json:"derivatives"`
	ExternalDependencies []string `json:"external_dependencies"`
}

type Testing struct {
	TestFrameworks     []string `json:"test_frameworks"`
	CoveragePercentage float64  `json:"coverage_percentage"`
	TestPatterns       []string `json:"test_patterns"`
}

type Security struct {
	SecurityPatterns      []string `json:"security_patterns"`
	AuthenticationMethods []string `json:"authentication_methods"`
	ComplianceStandards   []string `json:"compliance_standards"`
}

// Lesson categories and severities.
var (
	LessonCategories = []string{"performance", "security", "reliability", "cost", "observability", "deployment"}
	LessonSeverities = []string{"info", "warning", "critical"}
)

type Lesson struct {
	ID         string    `json:"lesson_id,omitempty"`
	Category   string    `json:"category"`
	Lesson     string    `json:"lesson"`
	Context    string    `json:"context"`
	Severity   string    `json:"severity"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Component struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

type Edge struct {
	Repository   string `json:"repository"`
	Relationship string `json:"relationship"`
}

// RuntimeIssue types and severities.
var (
	IssueTypes      = []string{"error", "performance", "crash", "security"}
	IssueSeverities = []string{"low", "medium", "high", "critical"}
	IssueStatuses   = []string{"open", "investigating", "fixed", "false_positive"}
)

type RuntimeIssue struct {
	ID               string         `json:"id"`
	DetectedAt       time.Time      `json:"detected_at"`
	IssueType        string         `json:"issue_type"`
	Severity         string         `json:"severity"`
	ServiceType      string         `json:"service_type"`
	Logs             string         `json:"logs"`
	RootCause        string         `json:"root_cause,omitempty"`
	Fix              string         `json:"fix,omitempty"`
	PatternReference string         `json:"pattern_reference,omitempty"`
	GithubIssueURL   string         `json:"github_issue_url,omitempty"`
	Status           string         `json:"status"`
	Metrics          map[string]any `json:"metrics,omitempty"`
	ResolutionTime   string         `json:"resolution_time,omitempty"`
}

type ProductionMetrics struct {
	ErrorRate     float64   `json:"error_rate"`
	LatencyP50    float64   `json:"latency_p50"`
	LatencyP95    float64   `json:"latency_p95"`
	LatencyP99    float64   `json:"latency_p99"`
	ThroughputRPS float64   `json:"throughput_rps"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Snapshot is one append-only history entry. Existing entries are never
// mutated.
type Snapshot struct {
	Timestamp time.Time  `json:"timestamp"`
	CommitSHA string     `json:"commit_sha"`
	Patterns  PatternSet `json:"patterns"`
}

// Repo returns the record for id, or nil if the repository is not tracked.
func (d *Document) Repo(id string) *RepoRecord {
	if d.Repositories == nil {
		return nil
	}
	return d.Repositories[id]
}

// EnsureRepo returns the record for id, creating an empty one if absent.
func (d *Document) EnsureRepo(id string) *RepoRecord {
	if d.Repositories == nil {
		d.Repositories = make(map[string]*RepoRecord)
	}
	r, ok := d.Repositories[id]
	if !ok {
		r = &RepoRecord{}
		d.Repositories[id] = r
	}
	return r
}

// HistoryLimit caps the retained analysis snapshots per repository.
const HistoryLimit = 50

// RecordAnalysis installs a new pattern set as the repository's latest
// analysis and appends a history snapshot. Older entries beyond
// HistoryLimit are dropped from the front; surviving entries are never
// mutated.
func (r *RepoRecord) RecordAnalysis(set PatternSet) {
	r.LatestPatterns = set
	r.History = append(r.History, Snapshot{
		Timestamp: set.AnalyzedAt,
		CommitSHA: set.CommitSHA,
		Patterns:  set,
	})
	if len(r.History) > HistoryLimit {
		r.History = r.History[len(r.History)-HistoryLimit:]
	}
}
