package domain

import "errors"

var (
	// ErrUnknownTopic marks a log whose topic hash matches neither watched
	// event signature. Such logs are skipped silently, not reported.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrPriceUnavailable marks a symbol the pricing provider has no quote
	// for. Enrichment degrades to null pricing fields instead of failing.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrSubscribeFailed marks a chain subscription that could not be
	// established within the configured attempts. Fatal at startup.
	ErrSubscribeFailed = errors.New("subscription could not be established")
)
