/*
Package normalizer turns a raw spoken transcript into a numbered list.

It is the deterministic fallback used when the language-model formatter is
unavailable. The heuristic splits the transcript into sentences, strips the
item keyword and any ordinal attached to it ("Question one.", "second
decision:", "2."), keeps un-marked sentences as implicit items, and renumbers
the survivors from 1.

Normalize never fails: if nothing survives, or the pipeline panics, the input
is returned unmodified as item 1.

	normalizer.Normalize("Question one. Visualization. Question two. Furniture.", "question")
	// "1. Visualization.\n2. Furniture.\n"
*/
package normalizer
