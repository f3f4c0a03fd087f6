// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package extractor derives reusable patterns from commit diffs using a
// generative model.
package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/textwrap"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// ChangedFile is one file of a commit presented to the model.
type ChangedFile struct {
	Path string
	// Diff is the unified diff hunk for the file, possibly truncated.
	Diff string
}

// Request describes one commit to analyze.
type Request struct {
	Repository    string
	CommitSHA     string
	CommitMessage string
	Files         []ChangedFile
}

// Extractor turns a commit into a pattern set.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*kb.PatternSet, error)
}

// ExtractTimeout bounds a single model call.
const ExtractTimeout = 60 * time.Second

const JSONMIMEType = "application/json"

// patternSchema constrains the model output to the pattern set shape.
var patternSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"patterns":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"decisions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"reusable_components": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"files":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
				Required: []string{"name"},
			},
		},
		"dependencies": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"problem_domain": {Type: genai.TypeString},
		"keywords":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"patterns", "keywords"},
}

type promptParams struct {
	Repository    string
	CommitMessage string
	Files         []ChangedFile
}

var promptTpl = template.Must(
	template.New(
		"extract patterns",
	).Parse(
		textwrap.Dedent(`
			Goal: Identify the development knowledge captured by this commit.
			Report recurring implementation patterns, architectural decisions,
			components reusable by other projects, dependency changes, the problem
			domain, and searchable keywords.
			Report only what the diff itself supports. Keep pattern names short and
			reusable across repositories.

			Repository: {{.Repository}}
			Commit message:
			{{.CommitMessage}}
			{{range .Files}}
			--- {{.Path}} ---
			{{.Diff}}
			{{end}}
			`)[1:],
	))

// Gemini is the production Extractor.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds an Extractor backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating AI client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Extract(ctx context.Context, req Request) (*kb.PatternSet, error) {
	ctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()
	prompt, err := executeTemplate(promptTpl, promptParams{
		Repository:    req.Repository,
		CommitMessage: req.CommitMessage,
		Files:         FilterFiles(req.Files),
	})
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		ResponseSchema:   patternSchema,
		ResponseMIMEType: JSONMIMEType,
		Temperature:      genai.Ptr[float32](.1),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil && transientError(err) {
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate content")
	}
	set, err := decodePatterns(resp.Text())
	if err != nil {
		return nil, err
	}
	set.AnalyzedAt = time.Now().UTC()
	set.CommitSHA = req.CommitSHA
	return set, nil
}

// transientError reports whether a generation failure is worth one
// retry: throttling and server-side faults, not request or model errors,
// and never an expired context.
func transientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	// Errors that never reached the API are transport failures.
	return true
}

func decodePatterns(text string) (*kb.PatternSet, error) {
	if text == "" {
		return nil, errors.New("empty response content")
	}
	var set kb.PatternSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return nil, errors.Wrap(err, "parsing JSON response")
	}
	return &set, nil
}

// ResultOrEmpty degrades a failed extraction to an empty pattern set so
// an analysis pipeline can record the commit without patterns.
func ResultOrEmpty(set *kb.PatternSet, err error, commitSHA string) *kb.PatternSet {
	if err == nil && set != nil {
		return set
	}
	return &kb.PatternSet{
		Patterns:           []string{},
		Decisions:          []string{},
		ReusableComponents: []kb.Component{},
		Keywords:           []string{},
		AnalyzedAt:         time.Now().UTC(),
		CommitSHA:          commitSHA,
	}
}

func executeTemplate(tpl *template.Template, params any) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, params); err != nil {
		return "", errors.Wrap(err, "executing prompt template")
	}
	return sb.String(), nil
}
