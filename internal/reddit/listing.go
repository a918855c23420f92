package reddit

import "encoding/json"

// Listing is Reddit's native listing envelope. Children are kept as raw
// JSON so the proxy forwards every field untouched; only the cursor and
// count fields are interpreted here.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    *string           `json:"after"`
	Before   *string           `json:"before"`
	Dist     int               `json:"dist"`
	Modhash  string            `json:"modhash"`
	Children []json.RawMessage `json:"children"`
}

// Identity is the subset of the /api/v1/me response the proxy itself needs.
// The full raw body is still forwarded to the client for profile display.
type Identity struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	IconImg string `json:"icon_img"`
}

// TokenResponse is Reddit's OAuth token payload, forwarded verbatim to the
// client. RefreshToken is filled in by us on refresh calls because Reddit
// omits it there.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}
