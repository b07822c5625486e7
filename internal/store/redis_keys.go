package store

const (
	KeyUser       = "user:%d"
	KeyUserIndex  = "users"
	KeyRoundState = "round:state"
	KeyRoundBets  = "round:%d:bets"
	KeyPot        = "pot"
	KeyHistory    = "round:history"
	KeyRequest    = "request:%s"
	KeyRequests   = "requests:%s"
)
