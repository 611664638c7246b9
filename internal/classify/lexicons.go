package classify

// Keyword lexicons and CPC mappings for the heuristic classifiers.
// Slices are kept sorted so scoring walks them in a fixed order and the
// reasons lists come out deterministic.

// cpcCategory maps a CPC code prefix to its security category.
type cpcCategory struct {
	prefix   string
	category string
}

var securityCPCPatterns = []cpcCategory{
	{"G06F11/30", "vulnerability"}, // Monitoring/testing
	{"G06F21", "endpoint"},         // Security arrangements for computing
	{"G09C", "cryptography"},       // Ciphering or deciphering apparatus
	{"H04K", "cryptography"},       // Secret communication
	{"H04L12/26", "network"},       // Monitoring network arrangements
	{"H04L63", "network"},          // Network security
	{"H04L9", "cryptography"},      // Cryptographic mechanisms
	{"H04W12", "network"},          // Wireless security
}

var highConfidenceKeywords = []string{
	"advanced persistent",
	"apt",
	"authentication",
	"authorization",
	"blue team",
	"botnet",
	"cipher",
	"cryptograph",
	"cve-",
	"cyber attack",
	"data breach",
	"ddos",
	"decrypt",
	"denial of service",
	"dos attack",
	"edr",
	"encryption",
	"endpoint protection",
	"exploit",
	"firewall",
	"iam",
	"intrusion detection",
	"intrusion prevention",
	"malicious code",
	"malware",
	"mfa",
	"penetration test",
	"phishing",
	"ransomware",
	"ransomware attack",
	"red team",
	"security breach",
	"siem",
	"soar",
	"social engineering",
	"spear phishing",
	"sso",
	"threat intelligence",
	"trojan",
	"vulnerability",
	"xdr",
	"zero day",
	"zero-day",
}

var mediumConfidenceKeywords = []string{
	"access control",
	"attack",
	"audit",
	"breach",
	"compliance",
	"cyber security",
	"cybersecurity",
	"detection",
	"forensic",
	"gdpr",
	"hipaa",
	"incident response",
	"monitoring",
	"pci",
	"permission",
	"privilege",
	"risk",
	"security",
	"security audit",
	"sox",
	"threat",
	"vulnerability assessment",
}

var negativeKeywords = []string{
	"e-commerce",
	"entertainment",
	"fashion",
	"food",
	"gaming",
	"hr",
	"human resources",
	"marketing",
	"retail",
	"sales",
	"social media",
}

// categoryKeywords drive category detection; iterated in slice order so
// count ties resolve to the lexicographically first category.
type categoryLexicon struct {
	category string
	keywords []string
}

var categoryKeywords = []categoryLexicon{
	{"application", []string{"appsec", "application security", "sast", "dast", "waf", "api security"}},
	{"cloud", []string{"cloud security", "aws security", "azure security", "gcp security", "saas security", "serverless"}},
	{"cryptography", []string{"cryptograph", "encryption", "decrypt", "cipher", "pki", "tls", "ssl", "hash"}},
	{"data", []string{"encryption", "dlp", "data loss", "privacy", "gdpr", "key management", "data protection"}},
	{"endpoint", []string{"edr", "endpoint", "antivirus", "anti-virus", "device security", "mobile security"}},
	{"governance", []string{"compliance", "audit", "policy", "risk", "sox", "hipaa", "pci"}},
	{"identity", []string{"iam", "identity", "authentication", "authorization", "sso", "mfa", "access management"}},
	{"malware", []string{"malware", "ransomware", "trojan", "worm", "virus", "botnet", "c2", "command and control"}},
	{"network", []string{"firewall", "ids", "ips", "ddos", "vpn", "network security", "perimeter"}},
	{"vulnerability", []string{"vulnerability", "cve", "exploit", "patch", "zero-day", "zero day"}},
}

// Novelty indicator lexicons.
var (
	patentNoveltyHigh = []string{
		"advanced", "breakthrough", "first", "innovative", "new method",
		"new system", "novel", "revolutionary", "unprecedented",
	}
	patentNoveltyMed = []string{
		"apparatus for", "efficient", "enhanced", "improved",
		"method for", "optimized", "system for",
	}
	newsNoveltyHigh = []string{
		"announces new", "breakthrough", "first-of-its-kind",
		"innovative platform", "introduces", "launches",
		"revolutionary", "unveils",
	}
	newsNoveltyMed = []string{
		"enhanced", "new feature", "new platform", "new product",
	}
)

// excludeWords are capitalized tokens the company patterns must not treat
// as company names (articles, agencies, funding vocabulary).
var excludeWords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true,
	"cisa": true, "fbi": true, "nsa": true, "cve": true, "owasp": true,
	"series": true, "round": true, "funding": true, "million": true,
	"billion": true,
}
