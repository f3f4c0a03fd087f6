// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// nexus-admin inspects and maintains the knowledge base directly,
// without going through the A2A plane.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/nexus-agents/dev-nexus/internal/config"
	"github.com/nexus-agents/dev-nexus/internal/extractor"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/kb/similarity"
	"github.com/nexus-agents/dev-nexus/internal/kb/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

var (
	format         string
	healthDays     int
	similarK       int
	extractorModel string
)

func newStore() (*store.Store, error) {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, err
	}
	if cfg.KnowledgeBaseRepo == "" {
		return nil, fmt.Errorf("KNOWLEDGE_BASE_REPO is required")
	}
	return store.New(store.NewGitStore(store.GitStoreOptions{
		URL:   fmt.Sprintf("https://github.com/%s.git", cfg.KnowledgeBaseRepo),
		Path:  cfg.KnowledgeBaseFile,
		Token: cfg.RemoteToken,
	})), nil
}

func render(v any) error {
	switch format {
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(b))
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:     "nexus-admin",
	Short:   "Inspect and maintain the Dev-Nexus knowledge base",
	Version: version,
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base operations",
}

var showCmd = &cobra.Command{
	Use:   "show [repository]",
	Short: "Print the knowledge base, or one repository's record",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		doc, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			rec := doc.Repo(args[0])
			if rec == nil {
				return fmt.Errorf("repository %q not tracked", args[0])
			}
			return render(rec)
		}
		color.Green("%d repositories, schema %s, last updated %s",
			len(doc.Repositories), doc.SchemaVersion, doc.LastUpdated.Format(time.RFC3339))
		return render(doc)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Persist the current document at the latest schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		// Load already migrates in memory; an identity mutation persists it.
		_, err = st.Mutate(cmd.Context(), "Migrate knowledge base schema", func(doc *kb.Document) (any, error) {
			return nil, nil
		})
		if err != nil {
			return err
		}
		color.Green("knowledge base at schema %s", kb.SchemaV2)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health <pattern>",
	Short: "Score a pattern's reliability across adopters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		doc, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		h := similarity.PatternHealth(doc, args[0], time.Duration(healthDays)*24*time.Hour, time.Now().UTC())
		c := color.New(color.FgGreen)
		if h.HealthScore < 0.7 {
			c = color.New(color.FgYellow)
		}
		if h.HealthScore < 0.5 {
			c = color.New(color.FgRed)
		}
		c.Printf("%s: %.2f (%d/%d repos with issues)\n", h.Pattern, h.HealthScore, h.ReposWithIssues, h.TotalRepos)
		return render(h)
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <repository>",
	Short: "Rank repositories by pattern and keyword overlap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore()
		if err != nil {
			return err
		}
		doc, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		if doc.Repo(args[0]) == nil {
			return fmt.Errorf("repository %q not tracked", args[0])
		}
		return render(similarity.SimilarRepos(doc, args[0], similarK))
	},
}

// extractInput is the on-disk shape consumed by the extract command.
type extractInput struct {
	Repository    string `json:"repository"`
	CommitSHA     string `json:"commit_sha"`
	CommitMessage string `json:"commit_message"`
	Files         []struct {
		Path string `json:"path"`
		Diff string `json:"diff"`
	} `json:"files"`
}

var extractCmd = &cobra.Command{
	Use:   "extract <input.json>",
	Short: "Extract patterns from a commit description and record them",
	Long:  "Reads a JSON file {repository, commit_sha, commit_message, files:[{path,diff}]}, runs the pattern extractor, and records the result in the knowledge base.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var in extractInput
		if err := json.Unmarshal(b, &in); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		if err := kb.ValidateRepoID(in.Repository); err != nil {
			return err
		}
		cfg, err := config.Load(os.Getenv)
		if err != nil {
			return err
		}
		if cfg.ExtractorAPIKey == "" {
			return fmt.Errorf("EXTRACTOR_API_KEY is required")
		}
		gemini, err := extractor.NewGemini(cmd.Context(), cfg.ExtractorAPIKey, extractorModel)
		if err != nil {
			return err
		}
		req := extractor.Request{
			Repository:    in.Repository,
			CommitSHA:     in.CommitSHA,
			CommitMessage: in.CommitMessage,
		}
		for _, f := range in.Files {
			req.Files = append(req.Files, extractor.ChangedFile{Path: f.Path, Diff: f.Diff})
		}
		set, err := extractor.NewMemoized(gemini).Extract(cmd.Context(), req)
		set = extractor.ResultOrEmpty(set, err, in.CommitSHA)
		if err != nil {
			color.Yellow("extraction degraded: %v", err)
		}
		st, err := newStore()
		if err != nil {
			return err
		}
		commitMsg := fmt.Sprintf("Record analysis of %s@%s", in.Repository, in.CommitSHA)
		if _, err := st.Mutate(cmd.Context(), commitMsg, func(doc *kb.Document) (any, error) {
			doc.EnsureRepo(in.Repository).RecordAnalysis(*set)
			return nil, nil
		}); err != nil {
			return err
		}
		color.Green("recorded %d pattern(s) for %s@%s", len(set.Patterns), in.Repository, in.CommitSHA)
		return render(set)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&format, "format", "json", "output format: json|yaml")
	healthCmd.Flags().IntVar(&healthDays, "days", 30, "issue window in days")
	similarCmd.Flags().IntVar(&similarK, "k", 5, "number of matches")
	extractCmd.Flags().StringVar(&extractorModel, "model", "gemini-2.0-flash", "extraction model")
	kbCmd.AddCommand(showCmd, migrateCmd, healthCmd, similarCmd)
	rootCmd.AddCommand(kbCmd, extractCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
