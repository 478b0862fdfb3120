package envelope

// Profile is the pre-registered capability profile a persona starts from.
// Canonical personas resolve to one of the seven registered profiles below;
// any other persona id must carry its own explicit allowed_tools override
// and starts from minimalProfile — there is no implicit default grant.
type Profile struct {
	AllowedIntents   []string
	ForbiddenOutputs []string
	AllowedTools     []string
	EvidenceScope    EvidenceScope
	MemoryScope      MemoryScope
	CostBudget       CostBudget
	LatencyBudget    LatencyBudget
	EscalationRules  []string
	DisclaimerRules  []string
}

// Canonical persona ids. These are the seven platform roles with
// pre-registered profiles; everything else is a custom persona.
const (
	PersonaSDRCopilot       = "sdr_copilot"
	PersonaAccountExecutive = "account_executive"
	PersonaResearchAnalyst  = "research_analyst"
	PersonaCampaignManager  = "campaign_manager"
	PersonaSupportAgent     = "support_agent"
	PersonaDataEnricher     = "data_enricher"
	PersonaRevOpsAdmin      = "revops_admin"
)

// IsCanonical reports whether the persona id is one of the seven
// pre-registered platform roles.
func IsCanonical(personaID string) bool {
	_, ok := canonicalProfiles[personaID]
	return ok
}

var canonicalProfiles = map[string]Profile{
	PersonaSDRCopilot: {
		AllowedIntents:   []string{"prospect_outreach", "followup", "meeting_booking"},
		ForbiddenOutputs: []string{"pricing_commitment", "legal_advice", "discount_offer"},
		AllowedTools:     []string{"draft_email", "lead_enrich", "crm_lookup", "thread_summarize"},
		EvidenceScope: EvidenceScope{
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 90,
			AllowedSources:     []string{"crm", "enrichment", "public_web"},
		},
		MemoryScope:     MemoryScope{MaxDays: 30},
		CostBudget:      CostBudget{MaxTokens: 8_000, MaxCostUSD: 0.25, ModelTier: "standard"},
		LatencyBudget:   LatencyBudget{P95Ms: 4_000, TimeoutMs: 15_000},
		EscalationRules: []string{"pricing_question", "legal_question"},
		DisclaimerRules: []string{"ai_generated"},
	},
	PersonaAccountExecutive: {
		AllowedIntents:   []string{"deal_support", "followup", "proposal_drafting"},
		ForbiddenOutputs: []string{"legal_advice", "contract_terms"},
		AllowedTools:     []string{"draft_email", "crm_lookup", "thread_summarize", "company_search"},
		EvidenceScope: EvidenceScope{
			ShowRawEvidence:    true,
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 180,
			AllowedSources:     []string{"crm", "enrichment", "public_web", "call_notes"},
		},
		MemoryScope:     MemoryScope{MaxDays: 90},
		CostBudget:      CostBudget{MaxTokens: 16_000, MaxCostUSD: 0.60, ModelTier: "premium"},
		LatencyBudget:   LatencyBudget{P95Ms: 6_000, TimeoutMs: 20_000},
		EscalationRules: []string{"legal_question"},
		DisclaimerRules: []string{"ai_generated"},
	},
	PersonaResearchAnalyst: {
		AllowedIntents:   []string{"account_research", "market_analysis", "signal_review"},
		ForbiddenOutputs: []string{"outreach_content"},
		AllowedTools:     []string{"company_search", "web_research", "signal_score", "thread_summarize"},
		EvidenceScope: EvidenceScope{
			ShowRawEvidence:    true,
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 365,
			AllowedSources:     []string{"crm", "enrichment", "public_web", "news"},
		},
		MemoryScope:     MemoryScope{MaxDays: 14, SummarizedOnly: true},
		CostBudget:      CostBudget{MaxTokens: 32_000, MaxCostUSD: 1.20, ModelTier: "premium"},
		LatencyBudget:   LatencyBudget{P95Ms: 12_000, TimeoutMs: 45_000},
		DisclaimerRules: []string{"ai_generated", "research_only"},
	},
	PersonaCampaignManager: {
		AllowedIntents:   []string{"campaign_planning", "sequence_drafting", "ab_review"},
		ForbiddenOutputs: []string{"pricing_commitment", "discount_offer"},
		AllowedTools:     []string{"draft_email", "sequence_plan", "signal_score"},
		EvidenceScope: EvidenceScope{
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 60,
			AllowedSources:     []string{"crm", "enrichment"},
		},
		MemoryScope:     MemoryScope{MaxDays: 60},
		CostBudget:      CostBudget{MaxTokens: 12_000, MaxCostUSD: 0.40, ModelTier: "standard"},
		LatencyBudget:   LatencyBudget{P95Ms: 8_000, TimeoutMs: 30_000},
		DisclaimerRules: []string{"ai_generated"},
	},
	PersonaSupportAgent: {
		AllowedIntents:   []string{"customer_support", "troubleshooting"},
		ForbiddenOutputs: []string{"pricing_commitment", "legal_advice", "refund_promise"},
		AllowedTools:     []string{"crm_lookup", "thread_summarize", "kb_search"},
		EvidenceScope: EvidenceScope{
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 30,
			AllowedSources:     []string{"crm", "kb"},
		},
		MemoryScope:     MemoryScope{MaxDays: 7},
		CostBudget:      CostBudget{MaxTokens: 6_000, MaxCostUSD: 0.15, ModelTier: "economy"},
		LatencyBudget:   LatencyBudget{P95Ms: 3_000, TimeoutMs: 10_000},
		EscalationRules: []string{"refund_request", "churn_risk"},
		DisclaimerRules: []string{"ai_generated"},
	},
	PersonaDataEnricher: {
		AllowedIntents:   []string{"lead_enrichment", "data_validation"},
		ForbiddenOutputs: []string{"outreach_content", "pricing_commitment"},
		AllowedTools:     []string{"lead_enrich", "company_search", "crm_lookup"},
		EvidenceScope: EvidenceScope{
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 30,
			AllowedSources:     []string{"enrichment", "public_web"},
		},
		MemoryScope:   MemoryScope{Stateless: true},
		CostBudget:    CostBudget{MaxTokens: 4_000, MaxCostUSD: 0.08, ModelTier: "economy"},
		LatencyBudget: LatencyBudget{P95Ms: 2_000, TimeoutMs: 8_000},
	},
	PersonaRevOpsAdmin: {
		AllowedIntents:   []string{"reporting", "pipeline_review", "config_review"},
		ForbiddenOutputs: []string{"outreach_content"},
		AllowedTools:     []string{"crm_lookup", "signal_score", "thread_summarize", "company_search"},
		EvidenceScope: EvidenceScope{
			ShowRawEvidence:    true,
			ShowProvenance:     true,
			MaxEvidenceAgeDays: 365,
			AllowedSources:     []string{"crm", "enrichment", "public_web", "kb"},
		},
		MemoryScope:     MemoryScope{MaxDays: 90},
		CostBudget:      CostBudget{MaxTokens: 24_000, MaxCostUSD: 0.80, ModelTier: "premium"},
		LatencyBudget:   LatencyBudget{P95Ms: 10_000, TimeoutMs: 30_000},
		DisclaimerRules: []string{"ai_generated"},
	},
}

// minimalProfile is the safe baseline a custom persona starts from before
// its explicit overrides are applied. It grants no tools; the factory
// rejects custom personas whose overrides do not supply allowed_tools.
var minimalProfile = Profile{
	MemoryScope:     MemoryScope{Stateless: true},
	CostBudget:      CostBudget{MaxTokens: 4_000, MaxCostUSD: 0.10, ModelTier: "economy"},
	LatencyBudget:   LatencyBudget{P95Ms: 5_000, TimeoutMs: 15_000},
	DisclaimerRules: []string{"ai_generated"},
}
