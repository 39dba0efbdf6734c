package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subject roots.
const (
	SubjectPrefix   = "bridge"
	DefaultHostName = "essentials"
)

// BuildRequestSubject builds the subject the host listens on for request envelopes.
func BuildRequestSubject(host string) string {
	return fmt.Sprintf("%s.%s.request", SubjectPrefix, safeToken(host))
}

// BuildResponseSubject builds the subject the host answers a given bridge service on.
func BuildResponseSubject(host, service string) string {
	return fmt.Sprintf("%s.%s.response.%s", SubjectPrefix, safeToken(host), safeToken(service))
}

// BuildInvokeSubject builds the subject sandboxed callers send invoke envelopes to.
func BuildInvokeSubject(service string) string {
	return fmt.Sprintf("%s.%s.invoke", SubjectPrefix, safeToken(service))
}

// BuildResultSubject builds the subject fire-and-forget results are published on.
func BuildResultSubject(service string) string {
	return fmt.Sprintf("%s.%s.results", SubjectPrefix, safeToken(service))
}

// safeToken keeps a name usable as a single subject token.
func safeToken(name string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return r.Replace(name)
}
