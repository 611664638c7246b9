package classify

// Prompt templates for the two classification tiers. The item context is
// appended after the template, separated by a blank line. Both templates
// pin the response to a bare JSON object so the fence stripper and field
// validation downstream stay simple.

const relevancePromptTemplate = `You are a cybersecurity analyst triaging patents and news articles.

Decide whether the item below is relevant to cybersecurity. Relevant items
concern security technology, attacks, defenses, vulnerabilities, threat
actors, security vendors, or security-sensitive infrastructure.

Respond with ONLY a JSON object, no prose and no markdown fences:
{
  "is_relevant": true or false,
  "score": 0.0 to 1.0 confidence that the item is cybersecurity-relevant,
  "category": one of "cloud", "network", "endpoint", "identity",
              "vulnerability", "malware", "data", "governance",
              "cryptography", "application", "iot", "unknown",
  "reasons": up to 4 short strings explaining the decision
}`

const extractionPromptTemplate = `You are a cybersecurity market analyst extracting structured data from
patents and news articles.

From the item below, extract the companies involved, the security sector,
a novelty estimate, and the key technologies.

Respond with ONLY a JSON object, no prose and no markdown fences:
{
  "company_names": up to 5 company names mentioned or assigned,
  "sector": one of "cloud", "network", "endpoint", "identity",
            "vulnerability", "malware", "data", "governance",
            "cryptography", "application", "iot", "unknown",
  "novelty_score": 0.0 to 1.0 estimate of how novel the technology is,
  "tech_keywords": up to 10 lowercase technology keywords,
  "rationale": up to 4 short strings justifying the extraction
}`
