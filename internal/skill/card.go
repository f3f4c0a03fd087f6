// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skill

// Capabilities advertises the transport features of the service.
type Capabilities struct {
	Streaming      bool   `json:"streaming"`
	Multimodal     bool   `json:"multimodal"`
	Authentication string `json:"authentication"`
}

// Descriptor is the published form of one skill.
type Descriptor struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	RequiresAuth bool           `json:"requires_authentication"`
	InputSchema  map[string]any `json:"input_schema"`
	Examples     []Example      `json:"examples"`
}

// AgentCard is the discovery document served at /.well-known/agent.json.
type AgentCard struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	URL          string         `json:"url"`
	Capabilities Capabilities   `json:"capabilities"`
	Skills       []Descriptor   `json:"skills"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ServiceInfo carries the card fields not derived from the registry.
type ServiceInfo struct {
	Name        string
	Description string
	Version     string
	URL         string
	Metadata    map[string]any
}

// Describe synthesizes the agent card from the current registry
// contents. It is recomputed on every call.
func (r *Registry) Describe(info ServiceInfo) AgentCard {
	card := AgentCard{
		Name:        info.Name,
		Description: info.Description,
		Version:     info.Version,
		URL:         info.URL,
		Capabilities: Capabilities{
			Streaming:      false,
			Multimodal:     false,
			Authentication: "optional",
		},
		Skills:   make([]Descriptor, 0, len(r.skills)),
		Metadata: info.Metadata,
	}
	for _, s := range r.skills {
		tags := s.Tags()
		if tags == nil {
			tags = []string{}
		}
		examples := s.Examples()
		if examples == nil {
			examples = []Example{}
		}
		card.Skills = append(card.Skills, Descriptor{
			ID:           s.ID(),
			Name:         s.Name(),
			Description:  s.Description(),
			Tags:         tags,
			RequiresAuth: s.RequiresAuth(),
			InputSchema:  s.InputSchema(),
			Examples:     examples,
		})
	}
	return card
}
