package storage

// DefaultSkills returns the skills seeded for a user who has none.
func DefaultSkills() []*Skill {
	return []*Skill{
		{
			Name:        "Industry Analysis",
			Description: "Market size, structure and competitive landscape",
			IsSystem:    true,
			Source:      SkillSourceDefault,
			Prompt: `Write an industry analysis report with these sections:
1. Industry overview: definition, market size and growth rate with sources and years.
2. Value chain: upstream, midstream and downstream segments and where profits concentrate.
3. Competitive landscape: main players, market shares and concentration.
4. Drivers and headwinds: policy, technology, demand and cost factors.
5. Outlook: the next three years, with the key indicators to watch.
Use tables for numeric comparisons and cite the material each figure comes from.`,
		},
		{
			Name:        "Technical Moat Breakdown",
			Description: "What protects a company's technology lead",
			IsSystem:    true,
			Source:      SkillSourceDefault,
			Prompt: `Break down the company's technical barriers:
1. Core technologies: what they are and which products depend on them.
2. Barrier type: patents, know-how, data, scale, ecosystem or regulation.
3. Evidence: R&D spend, patent counts, talent and benchmark results from the material.
4. Durability: how long the lead lasts and what could erode it.
5. Comparison: how the two closest competitors stand on each point.
Finish with a one-paragraph verdict on the strength of the moat.`,
		},
	}
}
