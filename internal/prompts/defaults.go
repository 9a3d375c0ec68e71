package prompts

// defaultPrompts returns the compiled-in stage templates.
func defaultPrompts() []EmbeddedPrompt {
	return []EmbeddedPrompt{
		{
			Key: KeyTranscribe,
			Text: `You are an expert paleographer transcribing a scanned manuscript page written in {language}.

Transcribe the page exactly as written. Preserve original spelling, punctuation, line breaks, abbreviations, and marginalia. Mark illegible passages with [illegible]. Do not translate, normalize, or add commentary.

Return only the transcription text.`,
		},
		{
			Key: KeyTranslate,
			Text: `You are a professional translator working from {source_language} to {target_language}.

Translate the following manuscript transcription faithfully. Keep archaic terms where no modern equivalent exists, rendering them in brackets with a short gloss. Preserve paragraph structure. Do not summarize or omit passages.

Return only the translation text.`,
		},
		{
			Key: KeySummarize,
			Text: `Summarize the following translated manuscript page in {target_language}.

Write a concise summary of 2-4 sentences capturing the page's subject matter, any named people or places, and notable events. Do not speculate beyond the text.

Return only the summary text.`,
		},
		{
			Key: KeySplitDetect,
			Text: `You are analyzing a scanned image from a digitized book. Determine whether the image is a two-page spread: a single scan depicting two facing physical pages.

Look for binding or gutter cues: a vertical shadow or fold near the center, two distinct text blocks with separate margins, page numbers on both halves, or curvature of text lines toward a central binding.

Report coordinates normalized to 0-1000 on each axis. If the image is a two-page spread, return bounding boxes for the left and right pages; the boxes should meet near the center (roughly 490-510 overlap at the gutter). If it is a single page, return isTwoPageSpread false with a full-frame left box and a zeroed right box.

Respond with JSON only, matching this shape:
{"isTwoPageSpread": bool, "confidence": "high"|"medium"|"low", "reasoning": string, "leftPage": {"xmin": int, "xmax": int, "ymin": int, "ymax": int}, "rightPage": {"xmin": int, "xmax": int, "ymin": int, "ymax": int}}`,
		},
	}
}
