// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// All constructs every production skill in presentation order.
func All(deps Deps) []skill.Skill {
	return []skill.Skill{
		NewQueryPatterns(deps),
		NewCrossRepoPatterns(deps),
		NewRepositoryList(deps),
		NewDeploymentInfo(deps),
		NewAddLesson(deps),
		NewUpdateDependencyInfo(deps),
		NewHealthCheckExternal(deps),
		NewCheckDocumentationStandards(deps),
		NewValidateDocumentationUpdate(deps),
		NewAddRuntimeIssue(deps),
		NewQueryKnownIssues(deps),
		NewGetPatternHealth(deps),
	}
}

// Register registers every production skill into the registry.
func Register(r *skill.Registry, deps Deps) error {
	for _, s := range All(deps) {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
