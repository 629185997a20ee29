package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yksirotta/credflow/pkg/domain"
)

var credentialPlaceholderPattern = regexp.MustCompile(`\{\{\s*\$credentials\.([a-zA-Z0-9_.]+)\s*\}\}`)

// AuthenticateGeneric substitutes {{$credentials.field}} placeholders into
// the scheme's header and query templates and merges the results into the
// request. Unknown fields resolve to the empty string; integrations are
// best-effort here rather than failing the whole call.
func AuthenticateGeneric(scheme *domain.GenericAuthScheme, data domain.DecryptedCredentialData, req *domain.RequestDescriptor) error {
	for key, template := range scheme.HeaderTemplates {
		req.SetHeader(key, expandPlaceholders(template, data))
	}
	for key, template := range scheme.QueryTemplates {
		req.SetQuery(key, expandPlaceholders(template, data))
	}

	if scheme.BasicAuth != nil {
		req.Auth = &domain.BasicAuthPair{
			Username: stringField(data, scheme.BasicAuth.UsernameField),
			Password: stringField(data, scheme.BasicAuth.PasswordField),
		}
	}

	return nil
}

func expandPlaceholders(template string, data domain.DecryptedCredentialData) string {
	return credentialPlaceholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := credentialPlaceholderPattern.FindStringSubmatch(match)
		return lookupField(data, groups[1])
	})
}

// lookupField resolves a dotted path through nested credential maps.
func lookupField(data domain.DecryptedCredentialData, path string) string {
	var current any = map[string]any(data)

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringField(data domain.DecryptedCredentialData, field string) string {
	if field == "" {
		return ""
	}
	return lookupField(data, field)
}
