package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAuctionExists   = errors.New("auction already exists")
	ErrNoBids          = errors.New("no bids found")
	ErrLedgerOrder     = errors.New("bid does not exceed the last recorded bid")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrAuctionNotLive = errors.New("auction is not live")
	ErrAlreadyLeading = errors.New("bidder already holds the highest bid")
	ErrServiceBusy    = errors.New("auction is busy, try again")
	ErrInvalidNotice  = errors.New("invalid notification")
)

// transport errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConnectionLost = errors.New("connection lost")
	ErrRateLimited    = errors.New("rate limit exceeded")
)
