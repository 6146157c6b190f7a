package models

// User is the slice of the auth service's user record this service reads.
type User struct {
	ID        int     `json:"id"`
	Nickname  string  `json:"nickname"`
	Elo       int     `json:"elo"`
	AvatarKey *string `json:"-"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// PublicProfile - то, что видит соперник в событиях матча.
type PublicProfile struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Elo      int     `json:"elo"`
	Avatar   *string `json:"avatar,omitempty"`
}
