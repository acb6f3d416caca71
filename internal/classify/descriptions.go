package classify

// SectionDescriptions tells the classifier what belongs in each section.
var SectionDescriptions = map[int]string{
	1:  "Business Profile & Strategic Positioning - Company structure, business model, regulatory compliance, membership documents, certificates",
	2:  "Financial Health & Performance - Financial statements, cash flow, Teiresias credit reports, tax declarations (E1, E3), ENFIA, credit scores, financial ratios",
	3:  "Market Analysis & Competitive Strategy - Market research, competitor analysis, target market segmentation, industry trends",
	4:  "Funding Strategy & Investment Planning - Funding proposals, OPSKE/ΕΣΠΑ applications, investment plans, loan applications",
	5:  "Digital Transformation Roadmap - Website information, digital strategy, technology implementation plans, online presence",
	6:  "Financial Management Systems - Accounting software, myDATA integration, ERP systems, financial process documentation",
	7:  "ESG Implementation Framework - Sustainability reports, ESG assessments, environmental initiatives, social responsibility programs",
	8:  "AI & Innovation Strategy - Technology adoption, innovation plans, AI readiness, digital tools",
	9:  "Leadership Development & Team Building - Psychometric assessments, personality tests, leadership evaluations, team assessments (look for scores base 100)",
	10: "Implementation Roadmap & Success Metrics - Overall business plans, strategic roadmaps (synthesis section)",
	11: "Legal & Regulatory Compliance - Tax documents (E1, E3, ENFIA), insurance documents, legal certificates, regulatory filings",
}
