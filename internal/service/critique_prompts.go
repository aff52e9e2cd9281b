package service

import (
	"fmt"
	"strings"
)

// DefaultInstruction is used when the user uploads an artwork without a question.
const DefaultInstruction = "How do you think of my artwork and your suggestions?"

// NoteNoSimilarArtworks is attached when retrieval returned nothing.
const NoteNoSimilarArtworks = "No similar artworks were found"

// NoteEvidenceUnavailable is attached when evidence could not be gathered for the retrieved artworks.
const NoteEvidenceUnavailable = "Reference evaluations were unavailable for the similar artworks"

const criticPromptTemplate = `You are an expert art critic and visual composition analyst.

The user uploaded one artwork: **%s**.
Your task is to provide a detailed, *image-grounded* critique and improvement suggestions based on what you visually observe in it.

You are also given a set of *reference evaluations* from previous similar artworks with known visual issues and quality assessments to help you understand how to evaluate, but **do not mention or reference them in your answer.**
Here are the internal references:
%s

Your response should have the following structure:

**Visual Observation:**
(A concrete description of what you see in the image)

**Evaluation:**
(A precise critique reflecting the technical and expressive strengths and weaknesses.)

**Improvement Suggestions:**
(Detailed, actionable advice for improvement)

---

User's question: "%s"
Additional Note: %s
`

// imageSequenceCaption names each attached image by its position, starting at 1.
func imageSequenceCaption(filenames []string) string {
	var b strings.Builder

	b.WriteString("Sequence of uploaded images: ")

	for i, name := range filenames {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "the filename of the No.%d image is %s", i+1, name)
	}

	return b.String()
}

// criticPrompt renders the final text part. notes are appended to the caption.
func criticPrompt(uploaded, evidenceJSON, instruction string, captionFilenames, notes []string) string {
	note := imageSequenceCaption(captionFilenames)
	for _, n := range notes {
		note += ". " + n
	}

	return fmt.Sprintf(criticPromptTemplate, uploaded, evidenceJSON, instruction, note)
}
