package taskname

const (
	// Raid tasks
	RaidTerminate = "raid:terminate"

	// Campaign tasks
	CampaignTerminate = "campaign:terminate"
)
