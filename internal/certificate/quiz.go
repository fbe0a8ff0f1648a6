package certificate

// DefaultQuiz is the privacy-awareness question bank shown on the dashboard.
func DefaultQuiz() []Question {
	return []Question{
		{
			ID:     "q1",
			Prompt: "What does granting consent for a purpose allow?",
			Options: []string{
				"Processing of your data for that purpose only",
				"Processing of your data for any purpose",
				"Nothing until you also confirm by email",
			},
			Answer: 0,
		},
		{
			ID:     "q2",
			Prompt: "Can you withdraw consent after granting it?",
			Options: []string{
				"No, consent is permanent",
				"Yes, at any time for optional purposes",
				"Only within 24 hours of granting",
			},
			Answer: 1,
		},
		{
			ID:     "q3",
			Prompt: "What happens when your consent expires?",
			Options: []string{
				"It renews automatically",
				"It converts to a denial",
				"It is no longer valid and must be renewed",
			},
			Answer: 2,
		},
		{
			ID:     "q4",
			Prompt: "Why can some purposes not be withdrawn?",
			Options: []string{
				"They are required to deliver the service itself",
				"The operator forgot to enable withdrawal",
				"Withdrawal is only for premium accounts",
			},
			Answer: 0,
		},
		{
			ID:     "q5",
			Prompt: "What does the signed artifact attached to a consent change prove?",
			Options: []string{
				"That the service is GDPR certified",
				"What was consented to, by whom, and when",
				"That your data has been deleted",
			},
			Answer: 1,
		},
	}
}
