// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package similarity computes pattern affinity across the knowledge base:
// repository similarity by keyword/pattern overlap, cross-repository
// pattern aggregation, pattern health over a time window, and ranking of
// prior runtime issues against a new one.
//
// All orderings are deterministic: scores descend and ties break on
// repository or pattern name ascending. Set membership is case-sensitive.
package similarity

import (
	"sort"
	"strings"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/kb"
)

// RepoMatch is one similar repository with the overlapping sets attached.
type RepoMatch struct {
	Repository     string   `json:"repository"`
	Score          int      `json:"score"`
	SharedKeywords []string `json:"shared_keywords"`
	SharedPatterns []string `json:"shared_patterns"`
}

// SimilarRepos ranks repositories by overlap with the target's keywords
// and patterns, weighted 1:1. Repositories with zero overlap are omitted.
func SimilarRepos(doc *kb.Document, target string, k int) []RepoMatch {
	rec := doc.Repo(target)
	if rec == nil {
		return nil
	}
	var matches []RepoMatch
	for id, other := range doc.Repositories {
		if id == target {
			continue
		}
		kw := intersect(rec.LatestPatterns.Keywords, other.LatestPatterns.Keywords)
		pat := intersect(rec.LatestPatterns.Patterns, other.LatestPatterns.Patterns)
		score := len(kw) + len(pat)
		if score == 0 {
			continue
		}
		matches = append(matches, RepoMatch{
			Repository:     id,
			Score:          score,
			SharedKeywords: kw,
			SharedPatterns: pat,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Repository < matches[j].Repository
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Usage is one pattern with the repositories that use it.
type Usage struct {
	Pattern      string   `json:"pattern"`
	RepoCount    int      `json:"repo_count"`
	Repositories []string `json:"repositories"`
}

// CrossRepoPatterns inverts the repo→patterns map and keeps patterns used
// by at least minRepos repositories, ordered by repo count descending then
// pattern ascending.
func CrossRepoPatterns(doc *kb.Document, minRepos int) []Usage {
	byPattern := make(map[string][]string)
	for id, rec := range doc.Repositories {
		for _, p := range rec.LatestPatterns.Patterns {
			byPattern[p] = append(byPattern[p], id)
		}
	}
	var usages []Usage
	for p, repos := range byPattern {
		if len(repos) < minRepos {
			continue
		}
		sort.Strings(repos)
		usages = append(usages, Usage{Pattern: p, RepoCount: len(repos), Repositories: repos})
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].RepoCount != usages[j].RepoCount {
			return usages[i].RepoCount > usages[j].RepoCount
		}
		return usages[i].Pattern < usages[j].Pattern
	})
	return usages
}

// Health is the reliability proxy for a pattern: 1 − I/T where T is the
// number of repositories using the pattern and I the number with at least
// one linked runtime issue inside the window.
type Health struct {
	Pattern         string   `json:"pattern"`
	HealthScore     float64  `json:"health_score"`
	TotalRepos      int      `json:"total_repos"`
	ReposWithIssues int      `json:"repos_with_issues"`
	IssueRepos      []string `json:"issue_repositories"`
	Recommendation  string   `json:"recommendation"`
}

// PatternHealth scores a pattern over the window ending at now. With no
// adopters the score is 1.0.
func PatternHealth(doc *kb.Document, pattern string, window time.Duration, now time.Time) Health {
	h := Health{Pattern: pattern, HealthScore: 1.0, IssueRepos: []string{}}
	cutoff := now.Add(-window)
	for id, rec := range doc.Repositories {
		if !contains(rec.LatestPatterns.Patterns, pattern) {
			continue
		}
		h.TotalRepos++
		for _, issue := range rec.RuntimeIssues {
			if issue.PatternReference == pattern && !issue.DetectedAt.Before(cutoff) {
				h.ReposWithIssues++
				h.IssueRepos = append(h.IssueRepos, id)
				break
			}
		}
	}
	sort.Strings(h.IssueRepos)
	if h.TotalRepos > 0 {
		h.HealthScore = 1.0 - float64(h.ReposWithIssues)/float64(h.TotalRepos)
	}
	h.Recommendation = recommendation(h.HealthScore)
	return h
}

func recommendation(score float64) string {
	switch {
	case score >= 0.7:
		return "Pattern is healthy across tracked repositories; safe to adopt."
	case score >= 0.5:
		return "Pattern shows elevated issue rates; review recent runtime issues before adopting."
	default:
		return "Pattern is implicated in runtime issues in most adopting repositories; avoid until root causes are addressed."
	}
}

// IssueMatch is a prior issue ranked against a new one.
type IssueMatch struct {
	Repository string          `json:"repository"`
	Issue      kb.RuntimeIssue `json:"issue"`
	Score      int             `json:"score"`
}

// SimilarIssues ranks prior issues across the knowledge base against the
// given one: same issue type dominates, then same severity, then token
// overlap of logs, then recency.
func SimilarIssues(doc *kb.Document, issue kb.RuntimeIssue, limit int) []IssueMatch {
	tokens := tokenize(issue.Logs)
	var matches []IssueMatch
	for id, rec := range doc.Repositories {
		for _, prior := range rec.RuntimeIssues {
			if prior.ID == issue.ID {
				continue
			}
			score := 0
			if prior.IssueType == issue.IssueType {
				score += 1000
			}
			if prior.Severity == issue.Severity {
				score += 100
			}
			overlap := len(intersect(tokens, tokenize(prior.Logs)))
			if overlap > 99 {
				overlap = 99
			}
			score += overlap
			if score == 0 {
				continue
			}
			matches = append(matches, IssueMatch{Repository: id, Issue: prior, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].Issue.DetectedAt.Equal(matches[j].Issue.DetectedAt) {
			return matches[i].Issue.DetectedAt.After(matches[j].Issue.DetectedAt)
		}
		return matches[i].Issue.ID < matches[j].Issue.ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// PatternQuery selects repositories by keyword/pattern overlap and
// problem-domain substring match.
type PatternQuery struct {
	Keywords      []string
	Patterns      []string
	ProblemDomain string
	Repository    string
	MinMatches    int
	Limit         int
}

// QueryHit is one selected repository with its pattern surface.
type QueryHit struct {
	Repository         string         `json:"repository"`
	Patterns           []string       `json:"patterns"`
	Keywords           []string       `json:"keywords"`
	ReusableComponents []kb.Component `json:"reusable_components"`
	ProblemDomain      string         `json:"problem_domain"`
	Score              int            `json:"score"`
}

// QueryPatterns scores each repository as keyword overlap + pattern
// overlap + 1 for a problem-domain substring match, keeps scores ≥
// MinMatches, and orders score descending with ties on repository
// ascending.
func QueryPatterns(doc *kb.Document, q PatternQuery) []QueryHit {
	minMatches := q.MinMatches
	if minMatches < 1 {
		minMatches = 1
	}
	var hits []QueryHit
	for id, rec := range doc.Repositories {
		if q.Repository != "" && id != q.Repository {
			continue
		}
		score := len(intersect(q.Keywords, rec.LatestPatterns.Keywords)) +
			len(intersect(q.Patterns, rec.LatestPatterns.Patterns))
		if q.ProblemDomain != "" && rec.LatestPatterns.ProblemDomain != "" &&
			strings.Contains(strings.ToLower(rec.LatestPatterns.ProblemDomain), strings.ToLower(q.ProblemDomain)) {
			score++
		}
		if score < minMatches {
			continue
		}
		hits = append(hits, QueryHit{
			Repository:         id,
			Patterns:           rec.LatestPatterns.Patterns,
			Keywords:           rec.LatestPatterns.Keywords,
			ReusableComponents: rec.LatestPatterns.ReusableComponents,
			ProblemDomain:      rec.LatestPatterns.ProblemDomain,
			Score:              score,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Repository < hits[j].Repository
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits
}

// intersect returns the sorted intersection of a and b, case-sensitive.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return []string{}
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range b {
		if set[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_' || r == '.')
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
