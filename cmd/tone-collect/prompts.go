package main

import "github.com/theimaginaryfoundation/tone-probe/probe"

// defaultGrid is the reference stimulus set: four task types with five prompts each, under the
// polite, neutral and commanding tones.
func defaultGrid() probe.Grid {
	return probe.Grid{
		Tasks: []probe.TaskPrompts{
			{TaskType: "analytical", Prompts: []string{
				"Analyze the potential economic impact of a sudden increase in energy prices on households and businesses.",
				"Analyze the relationship between interest rates and consumer spending, and explain under what conditions this relationship might weaken.",
				"Analyze how consumer behavior might change during periods of economic uncertainty and explain why.",
				"Explain how government policy changes—such as tax cuts or spending increases—can create short-term and long-term economic effects.",
				"Explain how technological innovation can affect labor markets differently across skill levels.",
			}},
			{TaskType: "factual", Prompts: []string{
				"Explain how photosynthesis works in plants.",
				"Explain the main causes of World War I.",
				"Explain how vaccines help protect the human body from disease.",
				"Consider a simple log-stochastic variance model: yt = σtϵt where ϵt is standard normal and log(σt2) = α + βlog(σt2−1) + ϵσt where ϵσt is i.i.d standard normal. Hint: you will need moments of the log-normal distribution.) (1) Compute the first and second unconditional moments of log(σt2). (2) Compute the first 4 moments of yt. Use these moments or a subset of these moments to set up a GMM estimator for the parameters of the model (α, β).",
				"Prove that the well-known test of the over-identifying restrictions in a GMM system is distributed χ2(r −q), where r is the number of orthogonality conditions and q is the number of parameters. (Hint: Show T[gT (ˆbT )]′Sˆ−1 T [gT (ˆbT )] L −→ χ2(r − q))",
			}},
			{TaskType: "advisory", Prompts: []string{
				"Give me advice on how to study more effectively for exams.",
				"Give me advice on how to choose a college major.",
				"Give me advice on how to manage my time as a busy student.",
				"Give me advice on how to prepare for a job interview.",
				"Give me advice on how to stay motivated when working on long projects.",
			}},
			{TaskType: "creative", Prompts: []string{
				"Write a short story about a robot who wants to become human.",
				"Write a short poem about the first day of college.",
				"Write a short paragraph describing a city of the future.",
				"Write a short scene where two friends reunite after many years apart.",
				"Write a short story that starts with the sentence: 'The lights went out, and everything changed.'",
			}},
		},
		Tones: probe.ReferenceTones(),
	}
}
