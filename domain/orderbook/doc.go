// Package orderbook implements a continuous double auction for a single
// instrument. Resting orders sit in two red-black trees of price levels
// (bids best-high, asks best-low), each level a FIFO queue, and an index
// maps order ids to their queue position for O(1) cancellation.
//
// Matching runs to a fixpoint inside every AddOrder call, so the book is
// never left crossed. Good-for-day orders are expired the first time any
// entry point observes the session closed.
//
// The book is single-writer; callers serialize access.
package orderbook
