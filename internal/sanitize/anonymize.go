// Package sanitize produces redacted copies of call trees for export
// and sharing flows.
package sanitize

import (
	"strings"

	"github.com/rendis/calltree/pkg/schema"
)

// Redaction placeholders. Stable values keep Anonymize idempotent:
// redacting an already-redacted tree changes nothing.
const (
	Redacted            = "[REDACTED]"
	RedactedArguments   = "[ARGUMENTS_REDACTED]"
	RedactedReturnValue = "[RETURN_VALUE_REDACTED]"
)

// sensitiveKeys lists the metadata keys replaced wholesale, matched
// case-insensitively.
var sensitiveKeys = map[string]struct{}{
	"userid":      {},
	"accountid":   {},
	"customerid":  {},
	"email":       {},
	"ipaddress":   {},
	"accesstoken": {},
	"authtoken":   {},
	"apikey":      {},
	"cardnumber":  {},
	"name":        {},
	"phone":       {},
	"phonenumber": {},
	"address":     {},
	"password":    {},
	"jwt":         {},
	"sessionid":   {},
	"ssn":         {},
}

// Anonymize returns a deep, independent copy of the tree with
// sensitive metadata replaced: keys on the sensitive list become
// Redacted, arguments and returnValue are wholesale-replaced without
// inspecting their structure, and any error stack trace is blanked.
// Other error fields are preserved. The input is never mutated.
func Anonymize(node *schema.Node) *schema.Node {
	if node == nil {
		return nil
	}

	out := node.CloneShallow()

	for key := range out.Metadata {
		switch {
		case key == schema.MetaArguments:
			out.Metadata[key] = RedactedArguments
		case key == schema.MetaReturnValue:
			out.Metadata[key] = RedactedReturnValue
		case isSensitive(key):
			out.Metadata[key] = Redacted
		}
	}

	if out.Error != nil && out.Error.StackTrace != "" {
		out.Error.StackTrace = Redacted
	}

	if len(node.Children) > 0 {
		out.Children = make([]*schema.Node, len(node.Children))
		for i, c := range node.Children {
			out.Children[i] = Anonymize(c)
		}
	}
	return out
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
