package branchsync

// GlobalBranch is the sentinel branch for collections that are not scoped to
// a branch (e.g. chain-wide discount rules). They cache and subscribe under
// one partition like everything else.
const GlobalBranch = "__global__"

// Key identifies one partition: an independently cached, independently
// subscribed (collection, branch) unit of data.
type Key struct {
	Collection string
	Branch     string
}

func (k Key) String() string { return k.Collection + "/" + k.Branch }
