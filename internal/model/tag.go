package model

import "strings"

type Tag struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	UserVisible    bool   `json:"user_visible"`
	UserAssignable bool   `json:"user_assignable"`
}

// Well-known names the host uses for its favorite marker.
const (
	FavoriteTagName     = "favorite"
	UserFavoriteTagName = "$user!favorite"
)

// IsFavorite recognizes a tag usable as the favorite marker: one of the
// well-known names, or any visible and assignable tag mentioning "favorite".
func (t Tag) IsFavorite() bool {
	if t.Name == UserFavoriteTagName || t.Name == FavoriteTagName {
		return true
	}
	return strings.Contains(t.Name, FavoriteTagName) && t.UserVisible && t.UserAssignable
}
