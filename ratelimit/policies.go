package ratelimit

import "time"

// Policy names.
const (
	General    = "general"
	Login      = "login"
	Register   = "register"
	CreatePost = "create_post"
	Comment    = "comment"
	AI         = "ai"
)

// DefaultPolicies returns the stock limits keyed by policy name.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		General: {Name: General, Requests: 100, Window: 15 * time.Minute,
			Message: "Too many requests from this IP, please try again later."},
		Login: {Name: Login, Requests: 5, Window: 10 * time.Minute,
			Message: "Too many login attempts. Try again after 10 minutes."},
		Register: {Name: Register, Requests: 5, Window: 30 * time.Minute,
			Message: "Too many accounts created from this IP. Try again later."},
		CreatePost: {Name: CreatePost, Requests: 10, Window: time.Hour,
			Message: "Post creation rate limit reached. Try again later."},
		Comment: {Name: Comment, Requests: 20, Window: time.Hour,
			Message: "You're commenting too frequently. Please slow down."},
		AI: {Name: AI, Requests: 10, Window: time.Hour,
			Message: "AI usage limit reached. Try again in an hour."},
	}
}
