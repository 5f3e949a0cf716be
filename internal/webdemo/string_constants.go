package webdemo

const (
	policyTime   = "time"
	policyCount  = "count"
	missSkip     = "skip"
	missFloor    = "floor"
	defaultWin   = "blackman"
	stateIdle    = "idle"
	stateRunning = "acquiring"
)
