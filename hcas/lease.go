package hcas

import "time"

// defaultObjectLease is how far into the future a freshly (re-)written
// object's lease_time is pushed. The lease column exists so a future GC
// policy can protect recently-touched objects even if their ref_count
// drops to zero mid-write; it is advisory bookkeeping only today.
const defaultObjectLease = 24 * time.Hour

func calculateLeaseTime(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}
