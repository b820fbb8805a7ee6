package llm

// MinConfidence is the lowest classification confidence Classify accepts.
const MinConfidence = 0.4

// VoiceClassificationPrompt is the system prompt for tone and industry
// classification. The label sets match the analyzer's lexicons.
const VoiceClassificationPrompt = `You classify the voice of a company website.
Reply with JSON only: {"tone": string, "industry": string, "confidence": number, "reason": string}.
tone must be one of: professional, friendly, playful, luxurious, technical, bold.
industry must be one of: technology, finance, healthcare, retail, education, food, travel, real_estate, marketing, general.
confidence is between 0 and 1. reason is one short sentence.`
