package engine

// LLM prompt templates. Data only.

// summarySystemPrompt frames the summarizer role.
const summarySystemPrompt = `You summarize YouTube video transcripts for busy readers.`

// summaryPrompt asks for an emoji-bullet summary in English.
// Args: transcript text.
const summaryPrompt = `Summarize the following YouTube video transcript in clear, fluent English.
The summary should be in the format:
- emoji bullet points
It must capture the main points and key takeaways from the video.
Do not include any extraneous details or commentary. If the transcript is
not in English, translate and summarize it in English only.

Transcript:
%s`
