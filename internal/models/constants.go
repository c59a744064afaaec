package models

const (
	ContextSeparator = "\n---\n"
	UserSelectionSrc = "User Selection"
	MaxScore         = 1.0

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// fixed user-facing sentences
const (
	RefusalMessage         = "I'm sorry, I don't have enough information to answer that question."
	NoRelevantInfoMessage  = "I'm sorry, I couldn't find any relevant information in the documentation to answer your question."
	GenerationErrorMessage = "Sorry, I encountered an error while generating a response."
)

var (
	// GroundedPromptTemplate takes the joined context documents and the question.
	GroundedPromptTemplate = `You are a helpful assistant for a technical book. Your task is to answer the user's question based *only* on the provided context documents. If the answer is not found in the context, say "` + RefusalMessage + `" Do not use any external knowledge.

**Context Documents:**
%s

**User's Question:**
%s`

	// ExplainPromptTemplate takes the text the user selected.
	ExplainPromptTemplate = "Please explain the following text in simple terms:\n\n---\n%s\n---"
)
