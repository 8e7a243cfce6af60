package robots

import (
	"time"

	"github.com/temoto/robotstxt"
)

// Policy is the parsed robots.txt for one domain. A Policy without data is
// permissive: every path is allowed and there is no crawl delay.
type Policy struct {
	data *robotstxt.RobotsData
}

// Permissive returns a policy that allows everything.
func Permissive() *Policy {
	return &Policy{}
}

// Parse builds a Policy from a robots.txt body.
func Parse(body []byte) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, err //nolint:wrapcheck // parse errors are wrapped by the caller
	}
	return &Policy{data: data}, nil
}

// IsPermissive reports whether the policy came from a missing or failed
// robots.txt.
func (p *Policy) IsPermissive() bool {
	return p == nil || p.data == nil
}

// Allowed reports whether userAgent may fetch path.
func (p *Policy) Allowed(path, userAgent string) bool {
	if p.IsPermissive() {
		return true
	}
	if path == "" {
		path = "/"
	}
	return p.data.FindGroup(userAgent).Test(path)
}

// CrawlDelay returns the Crawl-delay that applies to userAgent.
func (p *Policy) CrawlDelay(userAgent string) (time.Duration, bool) {
	if p.IsPermissive() {
		return 0, false
	}
	delay := p.data.FindGroup(userAgent).CrawlDelay
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}
