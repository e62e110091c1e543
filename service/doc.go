// Package service is the single write entry point into the book.
//
// BookService serializes submissions and cancels onto one OrderBook,
// stamps every trade with a publication sequence, records it in the
// outbox and keeps the book metrics current. Transports (gRPC, the
// sandbox driver) talk to the book only through it.
package service
