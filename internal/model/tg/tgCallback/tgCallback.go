package tgCallback

// Callbacks buttons prefixes
const (
	RefreshStatus string = "refresh_status"
	GetReport     string = "get_report"
)
