package handlers

// Conversation states stored per user. The state decides what a free text
// message means.
const (
	StateMenu                   = "menu"
	StateAwaitingPrompt         = "awaiting_prompt"
	StateQuestionnaire          = "questionnaire"
	StateAwaitingImage          = "awaiting_image"
	StateAwaitingContentPlan    = "awaiting_content_plan"
	StateAwaitingRewrite        = "awaiting_rewrite"
	StateAwaitingOrgDescription = "awaiting_org_description"
	StateMultiChat              = "multichat"
)
