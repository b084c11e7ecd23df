package mqtt

import (
	"fmt"
	"strings"
)

// StateTopic is where the snapshots of a battery are published.
func StateTopic(prefix, siteID, batteryID string) string {
	return fmt.Sprintf("%s/site/%s/battery/%s/state", prefix, siteID, batteryID)
}

// AllocationTopic is where the decide results of a site are published.
func AllocationTopic(prefix, siteID string) string {
	return fmt.Sprintf("%s/site/%s/allocation", prefix, siteID)
}

// DemandTopic is where requests for a site are pushed.
func DemandTopic(prefix, siteID string) string {
	return fmt.Sprintf("%s/demand/%s", prefix, siteID)
}

// demandSite extracts the site id from a demand topic.
func demandSite(prefix, topic string) (string, bool) {
	site, ok := strings.CutPrefix(topic, prefix+"/demand/")
	if !ok || site == "" || strings.Contains(site, "/") {
		return "", false
	}
	return site, true
}

func normalizePrefix(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "essim"
	}
	return p
}
