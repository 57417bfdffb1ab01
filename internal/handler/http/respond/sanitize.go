package respond

import "regexp"

// redactions run in order; the Anthropic key must be masked before the
// generic sk- pattern sees it.
var redactions = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]+`), "sk-ant-****"},
	{regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_-]{10,}`), "sk-****"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`), "Bearer ****"},
	{regexp.MustCompile(`(?i)(x-api-key:\s*)\S+`), "${1}****"},
	{regexp.MustCompile(`(?i)([?&](?:api_key|key|token)=)[^&\s]+`), "${1}****"},
	{regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`), "://$1:****@"},
}

// SanitizeError returns err's message with provider keys, bearer tokens,
// key-bearing query parameters and DSN passwords masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.with)
	}
	return msg
}
