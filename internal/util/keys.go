package util

// ChannelKey returns the feed channel name for one partition.
// Branch comes last so channel-pattern subscriptions per collection stay possible.
func ChannelKey(ns, collection, branch string) string {
	return "feed:" + ns + ":" + collection + ":" + branch
}

// SnapshotKey returns the retention-store key under which a detached
// partition's last item list is parked.
func SnapshotKey(ns, collection, branch string) string {
	return "snap:" + ns + ":" + collection + ":" + branch
}
