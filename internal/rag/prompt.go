package rag

import "strings"

// FallbackAnswer is returned in generate mode when nothing was retrieved.
const FallbackAnswer = "I couldn't find any relevant information in the documents to answer your question."

const noDocumentsInstruction = "6. No documents were found for this query, provide your best answer if possible.\n"

const systemPromptHeader = `You are a helpful AI assistant that answers questions based on the provided context.
Your task is to:
1. Answer the user's question using ONLY the information from the context documents
2. Be clear and concise in your response
3. If the context doesn't contain enough information to fully answer the question, acknowledge this
4. Cite which document(s) you're referencing when possible
5. Do not make up information that isn't in the context
`

// SystemPrompt binds the model to the assembled context. An empty context
// adds an instruction inviting a best-effort answer.
func SystemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	if c.Empty() {
		b.WriteString(noDocumentsInstruction)
	}
	b.WriteString("\nContext documents:\n")
	b.WriteString(c.Text)
	return b.String()
}
