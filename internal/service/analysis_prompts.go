package service

const incidentAnalysisPrompt = `Analyze the following cyber security incident from India and provide insights:

Title: {{incident.title}}
Description: {{incident.description}}
Source: {{incident.source}}
Category: {{incident.category}}
Severity: {{incident.severity}}
Published Date: {{incident.published_date}}

Please provide:
1. Risk Assessment: Evaluate the potential impact on Indian organizations
2. Affected Sectors: Which sectors in India are most likely to be affected
3. Recommended Actions: Specific steps Indian organizations should take
4. Threat Level: Assess the overall threat level for India (Low/Medium/High/Critical)
5. Key Insights: Important takeaways for Indian cybersecurity professionals

Format your response as a structured analysis focusing on the Indian context.`

const threatSummaryPrompt = `Based on the following recent cyber security incidents in India, provide a comprehensive threat summary:

Recent Incidents:
{{incidents}}

Please provide:
1. Overall Threat Landscape: Current state of cybersecurity in India
2. Trending Threats: Most common attack vectors and patterns
3. Sector Analysis: Which sectors are most targeted
4. Recommendations: Strategic recommendations for Indian organizations
5. Future Outlook: Predicted trends for the next 30 days

Focus on actionable insights for Indian cybersecurity professionals and organizations.`

const incidentInsightsPrompt = `Analyze this cyber security incident data from India and provide AI-powered insights:

Incident Data:
{{data}}

Provide:
1. Pattern Analysis: Identify patterns and trends
2. Risk Correlation: How this relates to other threats
3. Impact Prediction: Potential future impact
4. Mitigation Strategies: Specific recommendations
5. Intelligence Summary: Key intelligence for Indian cybersecurity teams

Focus on actionable intelligence for Indian organizations.`

var (
	incidentAnalysisLabels = []string{"Risk Assessment", "Affected Sectors", "Recommended Actions", "Threat Level", "Key Insights"}
	threatSummaryLabels    = []string{"Threat Landscape", "Trending Threats", "Sector Analysis", "Recommendations", "Future Outlook"}
	incidentInsightsLabels = []string{"Pattern Analysis", "Risk Correlation", "Impact Prediction", "Mitigation Strategies", "Intelligence Summary"}
)
