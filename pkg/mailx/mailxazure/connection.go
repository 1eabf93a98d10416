package mailxazure

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseConnectionString reads "endpoint=https://...;accesskey=..." into
// its endpoint (without trailing slash) and access key. Keys are matched
// case-insensitively and values keep any '=' after the first.
func ParseConnectionString(cs string) (endpoint, accessKey string, err error) {
	for _, part := range strings.Split(cs, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "endpoint":
			endpoint = strings.TrimRight(strings.TrimSpace(kv[1]), "/")
		case "accesskey":
			accessKey = strings.TrimSpace(kv[1])
		}
	}

	if endpoint == "" {
		return "", "", connectionStringError("endpoint is missing", nil)
	}
	if accessKey == "" {
		return "", "", connectionStringError("accesskey is missing", nil)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", connectionStringError("endpoint is not a valid URL", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", "", connectionStringError(fmt.Sprintf("endpoint %q must be an https URL", endpoint), nil)
	}

	return endpoint, accessKey, nil
}

func connectionStringError(reason string, cause error) error {
	e := azureErrors.NewWithCause(ErrConnectionString, cause).WithDetail("reason", reason)
	e.Message = "Invalid Azure Communication Services connection string: " + reason
	return e
}
