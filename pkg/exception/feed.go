package exception

import "github.com/yanun0323/errors"

// Feed errors
var (
	ErrFeedUnauthorized = errors.New("feed: unauthorized")
	ErrFeedRejected     = errors.New("feed: request rejected")
	ErrFeedStatus       = errors.New("feed: unexpected status")
	ErrFeedDecode       = errors.New("feed: decode response")
)
