package a2a

// BuildAgentCard returns the AgentCard for the TestForge service.
func BuildAgentCard(baseURL string) AgentCard {
	return AgentCard{
		Name:        "TestForge",
		Description: "QA testing orchestration platform",
		URL:         baseURL,
		Version:     "0.1.0",
		Skills: []Skill{
			{
				ID:          SkillRunQASession,
				Name:        "Run QA Session",
				Description: "Decompose requirements into test scenarios, run them against the target and return a verified verdict",
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
		},
		Capabilities: struct {
			Streaming bool `json:"streaming"`
		}{Streaming: false},
	}
}
