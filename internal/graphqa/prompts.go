package graphqa

import (
	"fmt"
	"strings"

	"github.com/gallery-ai/critic/internal/models"
)

const queryGenerationSystem = `You translate questions about an artwork rating graph into PostgreSQL.
Artworks are nodes in table artworks. Rating dimensions are nodes in table dimensions.
Each row of has_level is a HAS_LEVEL relationship from an artwork to a dimension, carrying
the level the artwork reached (one of: %s) and the reason given by the rater.
Use only the tables and columns in the schema. Never modify data.
Return exactly one SELECT statement and nothing else: no explanations, no Markdown.`

const queryGenerationTemplate = `Schema:
%s
Question:
%s`

const answerSystem = `You are an assistant that helps to form nice and human understandable answers.
The information part contains the provided information that you must use to construct an answer.
The provided information is authoritative; never doubt it or try to use your internal knowledge to correct it.
Make the answer sound like a response to the question. Do not mention that you based the result on the given information.
If the provided information is empty, say that you don't know the answer.`

const answerTemplate = `Information:
%s

Question: %s
Helpful Answer:`

const annotationQuestionTemplate = `Below are the filenames of the relevant works I want to query: %s.
You need to query the scores of dimensions and the reasons in all HAS_LEVEL relationships they are involved in,
and then return the results in the following JSON format:
[
    {
        "filename": "xxxx",
        "dimension": "overall",
        "level": "Good",
        "reason": "xxx"
    },
    {
        "filename": "xxxx",
        "dimension": "color",
        "level": "Good",
        "reason": "xxx"
    },
    ...
]
Note: You must only return JSON (do not include any extra text, comments, or formatting).`

const narrowedSuffix = `
Only these dimension values are valid: %s.
Return a bare JSON array whose objects have exactly the keys filename, dimension, level and reason.
Do not wrap the array in Markdown code fences. If nothing matches, return [].`

func levelNames() string {
	names := make([]string, 0, len(models.Levels))
	for _, l := range models.Levels {
		names = append(names, string(l))
	}

	return strings.Join(names, ", ")
}

func dimensionNames(dims []models.Dimension) string {
	names := make([]string, 0, len(dims))
	for _, d := range dims {
		names = append(names, string(d))
	}

	return strings.Join(names, ", ")
}

// AnnotationQuestion renders the natural-language request for the HAS_LEVEL
// annotations of the given artworks.
func AnnotationQuestion(req AnnotationRequest) string {
	q := fmt.Sprintf(annotationQuestionTemplate, strings.Join(req.Filenames, ", "))

	if req.Narrowed {
		dims := req.Dimensions
		if len(dims) == 0 {
			dims = models.Dimensions
		}

		q += fmt.Sprintf(narrowedSuffix, dimensionNames(dims))
	}

	return q
}
