package objectstore

import "strings"

// buildObjectKey maps a (username, filename) pair to its fully-qualified
// object-store key. filename may itself contain "/".
func buildObjectKey(username, filename string) string {
	return "users/" + username + "/" + filename
}

// splitObjectKey strips the "users/{username}/" prefix from key, returning
// the filename. The second return value is false if key does not belong to
// username.
func splitObjectKey(username, key string) (string, bool) {
	prefix := "users/" + username + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// userPrefix is the listing prefix that scopes a ListPrefix call to exactly
// one user's objects.
func userPrefix(username string) string {
	return "users/" + username + "/"
}
