package usecase

import "strings"

const (
	// RefusalSentence is the exact reply the model must give when the context
	// does not contain the answer.
	RefusalSentence = "The provided case documents do not contain the information needed to answer this question."

	// NoRelevantInformationMessage is returned without calling the model when
	// retrieval finds nothing for the process.
	NoRelevantInformationMessage = "No relevant information was found in the case documents for this question."

	ContextDelimiter = "\n\n---\n\n"

	SystemInstruction = "You are an assistant for legal case files. Answer the question using ONLY the information in the context below. " +
		"Do not use prior knowledge and do not speculate. " +
		"If the context does not contain the answer, reply exactly with: \"" + RefusalSentence + "\""

	answerTemperature = 0.1
)

// buildAnswerPrompt lays out the system instruction, the context and the
// question, in that order.
func buildAnswerPrompt(contexts []string, question string) string {
	var b strings.Builder
	b.WriteString(SystemInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(contexts, ContextDelimiter))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func buildAnalysisPrompt(instruction, fileName, text string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nRespond with a single valid JSON value and nothing else.")
	b.WriteString("\n\nDocument: ")
	b.WriteString(fileName)
	b.WriteString("\n")
	b.WriteString(text)
	return b.String()
}
