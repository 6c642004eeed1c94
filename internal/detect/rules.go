package detect

import (
	"regexp"

	"github.com/dshills/prrisk/internal/review"
)

// Rule is one entry in the pattern registry.
type Rule struct {
	ID          string
	Category    review.Category
	Severity    review.Severity
	Title       string
	Explanation string
	Suggestion  string
	// Redact masks secret values in the recorded snippet.
	Redact bool
	match  matcher
}

// matcher is either a lineMatcher or a followMatcher.
type matcher interface {
	isMatcher()
}

// lineMatcher fires on a single added line that matches Pattern, also
// matches Require when set, and does not match Exclude.
type lineMatcher struct {
	Pattern *regexp.Regexp
	Require *regexp.Regexp
	Exclude *regexp.Regexp
}

// followMatcher fires when an added line matches Anchor and one of the next
// Window added lines in the same hunk matches Follow. A "{var}" placeholder
// in Follow is replaced by the anchor's "var" capture group. With Body set,
// the window ends at the first line indented no deeper than the anchor.
type followMatcher struct {
	Anchor       *regexp.Regexp
	Require      *regexp.Regexp
	Follow       string
	Window       int
	Body         bool
	ReportFollow bool
}

func (lineMatcher) isMatcher()   {}
func (followMatcher) isMatcher() {}

var sqlConcat = regexp.MustCompile(`(?i)(["'` + "`" + `]\s*\+|\+\s*["'` + "`" + `]|["']\s*\+\s*\w|\.format\s*\(|["']\s*%\s*[\w(]|\bf["']|Sprintf\s*\(|\$\{)`)

// rules is the ordered registry. Order decides report order for findings
// on the same line.
var rules = []Rule{
	{
		ID:          "hardcoded-secret",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Hardcoded secret detected",
		Explanation: "A credential-like name is assigned a literal string value.",
		Suggestion:  "Load the value from the environment or a secret manager and rotate the exposed credential.",
		Redact:      true,
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)\b[\w.-]*(?:api[_-]?key|secret|passw(?:or)?d|token|access[_-]?key|private[_-]?key)[\w-]*["']?\s*(?::=|=|:)\s*["']([^"'\s]{8,})["']`),
			Exclude: regexp.MustCompile(`(?i)(?::=|=|:)\s*["'](?:\$\{|<|your[_-]|xxx|changeme|example|dummy|placeholder|redacted)`),
		},
	},
	{
		ID:          "aws-access-key",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Hardcoded AWS access key",
		Explanation: "The line contains an AWS access key id.",
		Suggestion:  "Remove the key, rotate it in IAM and use role or environment based credentials.",
		Redact:      true,
		match: lineMatcher{
			Pattern: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
		},
	},
	{
		ID:          "private-key",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Private key committed",
		Explanation: "A PEM private key block was added to the repository.",
		Suggestion:  "Remove the key from history, revoke it and distribute keys through a secret store.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`-----BEGIN (?:(?:RSA|EC|DSA|OPENSSH|ENCRYPTED|PGP) )?PRIVATE KEY(?: BLOCK)?-----`),
		},
	},
	{
		ID:          "sql-concat-exec",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Unsafe SQL query construction",
		Explanation: "A query string is built by concatenation or formatting and then executed.",
		Suggestion:  "Use parameterized queries with placeholders instead of building SQL from strings.",
		match: followMatcher{
			Anchor:  regexp.MustCompile(`^\s*(?:(?:var|let|const)\s+)?(?P<var>[A-Za-z_]\w*)\s*(?::=|=)\s*.*["'` + "`" + `(]\s*(?i:SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b`),
			Require: sqlConcat,
			Follow:  `(?i)\b(?:execute|executemany|exec|query|queryrow|querycontext|queryrowcontext|execcontext|raw|prepare)\s*\(\s*(?:\w+\s*,\s*)?{var}\b`,
			Window:  10,
		},
	},
	{
		ID:          "sql-concat-inline",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Unsafe SQL query construction",
		Explanation: "An execute call receives a query built by concatenation or formatting.",
		Suggestion:  "Use parameterized queries with placeholders instead of building SQL from strings.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)\b(?:execute|executemany|exec|query|queryrow|raw)\s*\(.*\b(?:SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b`),
			Require: sqlConcat,
		},
	},
	{
		ID:          "shell-injection",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Unsafe shell command construction",
		Explanation: "A process is spawned from a command string built from dynamic input.",
		Suggestion:  "Pass arguments as a list without a shell and validate any user-controlled values.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)(?:\bos\.(?:system|popen)|\bsubprocess\.(?:call|run|Popen|check_output|check_call)|\bchild_process\.exec|\bexecSync|\bRuntime\.getRuntime\(\)\.exec|\bshell_exec|\bpopen|(?:^|[^\w.])system)\s*\(`),
			Require: regexp.MustCompile(`(["'` + "`" + `]\s*\+|\+\s*["'` + "`" + `]|\+\s*\w+\s*\)|\bf["']|\.format\s*\(|\$\{|%\s*[\w(]|Sprintf\s*\()`),
		},
	},
	{
		ID:          "shell-true",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityMedium,
		Title:       "Subprocess invoked with shell=True",
		Explanation: "Running through a shell exposes the command to injection through its arguments.",
		Suggestion:  "Pass an argument list and drop shell=True.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`\bshell\s*=\s*True\b`),
		},
	},
	{
		ID:          "dynamic-eval",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Dynamic code execution",
		Explanation: "Code is evaluated from a runtime string.",
		Suggestion:  "Replace eval or exec with explicit parsing such as JSON decoding or a dispatch table.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?:^|[^\w.])(?:eval|exec)\s*\(|\bnew\s+Function\s*\(`),
		},
	},
	{
		ID:          "unsafe-deserialization",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityHigh,
		Title:       "Unsafe deserialization",
		Explanation: "Deserializing untrusted bytes with this API can construct arbitrary objects.",
		Suggestion:  "Use a data-only format such as JSON and validate the decoded structure.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`\b(?:c?[Pp]ickle|dill|shelve|marshal)\.loads?\s*\(|\bObjectInputStream\s*\(|\bunserialize\s*\(|\bjsonpickle\.decode\s*\(|BinaryFormatter\s*\(\s*\)\.Deserialize`),
		},
	},
	{
		ID:          "unsafe-yaml",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityMedium,
		Title:       "Unsafe YAML loading",
		Explanation: "yaml.load without a safe loader can instantiate arbitrary objects.",
		Suggestion:  "Use yaml.safe_load or pass Loader=yaml.SafeLoader.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`\byaml\.(?:load|load_all|unsafe_load)\s*\(`),
			Exclude: regexp.MustCompile(`C?SafeLoader`),
		},
	},
	{
		ID:          "weak-password-hash",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityMedium,
		Title:       "Weak hash for password-like value",
		Explanation: "MD5 and SHA-1 are fast, broken hashes and unsuitable for credentials.",
		Suggestion:  "Use bcrypt, scrypt or argon2 for passwords and SHA-256 or better elsewhere.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)\b(?:md5|sha-?1)\b`),
			Require: regexp.MustCompile(`(?i)passw|passwd|\bpwd\b|secret|credential|token`),
		},
	},
	{
		ID:          "xss-markup",
		Category:    review.CategorySecurity,
		Severity:    review.SeverityMedium,
		Title:       "Potential cross-site scripting",
		Explanation: "A value is written into rendered markup without escaping.",
		Suggestion:  "Use text-only APIs such as textContent or escape and sanitize the value first.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)\.(?:inner|outer)HTML\s*\+?=|dangerouslySetInnerHTML|\bdocument\.write(?:ln)?\s*\(|\bmark_safe\s*\(|\btemplate\.HTML\s*\(|\bv-html\s*=|\binsertAdjacentHTML\s*\(|\|\s*safe\b`),
			Exclude: regexp.MustCompile(`(?i)(?:HTML\s*\+?=\s*["'][^"'$]*["']\s*;?\s*$|template\.HTML\s*\(\s*["` + "`" + `][^"` + "`" + `]*["` + "`" + `]\s*\))`),
		},
	},
	{
		ID:          "n-plus-one",
		Category:    review.CategoryPerformance,
		Severity:    review.SeverityMedium,
		Title:       "N+1 query pattern",
		Explanation: "A query is issued once per element inside a loop.",
		Suggestion:  "Fetch the related rows in one batched query, a join, or select_related/prefetch_related.",
		match: followMatcher{
			Anchor: regexp.MustCompile(`^\s*(?:for\b.*(?:\bin\b|\bof\b|\brange\b|:)|.*\.(?:forEach|each|map)\s*\()`),
			Follow: `(?i)\.objects\.(?:get|filter)\s*\(|\.(?:query|execute|find_one|findOne|findById)\s*\(|\bfind_by_\w+\s*\(|\bSELECT\b|\.(?:Query|QueryRow|QueryContext|QueryRowContext|Exec|ExecContext)\s*\(`,
			Window: 8,
			Body:   true,
			// Report the query, not the loop header.
			ReportFollow: true,
		},
	},
	{
		ID:          "large-range",
		Category:    review.CategoryPerformance,
		Severity:    review.SeverityMedium,
		Title:       "Large fixed-range iteration",
		Explanation: "The loop iterates over a large fixed range in one pass.",
		Suggestion:  "Process the range in batches or paginate the underlying data.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`\bx?range\s*\(\s*(?:\d+\s*,\s*)?\d{4,}|\bfor\b.*<=?\s*\d{4,}\b|\brange\s+\d{4,}\b`),
		},
	},
	{
		ID:          "unbounded-loop",
		Category:    review.CategoryPerformance,
		Severity:    review.SeverityLow,
		Title:       "Unbounded loop",
		Explanation: "The loop has no termination condition in its header.",
		Suggestion:  "Make sure the loop has a reachable exit condition or a cancellation check.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`^\s*(?:while\s*\(?\s*(?:True|true|1)\s*\)?\s*[:{]?\s*$|for\s*\{\s*$|for\s*\(\s*;\s*;\s*\))`),
		},
	},
	{
		ID:          "blocking-sleep",
		Category:    review.CategoryPerformance,
		Severity:    review.SeverityLow,
		Title:       "Blocking sleep call",
		Explanation: "A fixed sleep blocks the calling thread.",
		Suggestion:  "Prefer event-driven waiting, timers or async scheduling over fixed sleeps.",
		match: lineMatcher{
			Pattern: regexp.MustCompile(`(?i)\b(?:time\.sleep|Thread\.sleep|usleep|sleep)\s*\(\s*\d+(?:\.\d+)?\s*\)|\btime\.Sleep\s*\(\s*\d+\s*\*\s*time\.(?:Second|Minute)`),
		},
	},
}

// Rules returns a copy of the pattern registry.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
