package model

// Join policies for tags. Open tags admit anyone who passes the normal
// attendance rules; whitelist tags additionally require the user to be
// present in the tag's whitelist.
const (
	JoinPolicyOpen      = "OPEN"
	JoinPolicyWhitelist = "WHITELIST"
)

// Tag categorizes events (e.g. "Beginner", "Competition Squad"). A tag may
// raise the effective difficulty floor of every event carrying it and may
// restrict joining to a whitelist. Tags are also the unit of scoped
// delegation: execs manage the events of the tags they have been given.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – unique tag name.
//  MinDifficulty – optional difficulty floor applied to tagged events.
//  JoinPolicy    – OPEN or WHITELIST.
type Tag struct {
	ID            uint64 // tags.id
	Name          string // tags.name
	MinDifficulty *int   // tags.min_difficulty (nullable)
	JoinPolicy    string // tags.join_policy
}
