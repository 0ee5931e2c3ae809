package common

const (
	// AccessTokenHeaderName is the HTTP header carrying the bearer token.
	AccessTokenHeaderName = "Authorization"

	// PromotionID is the constant application id of the singleton promotion
	// record.
	PromotionID = "promotion"

	// DefaultAssetFolder is used when an upload names no folder.
	DefaultAssetFolder = "misc"
)
