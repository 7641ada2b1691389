// Package broadcast fans live events out to websocket subscribers.
//
// Every subscriber gets its own bounded outbox and writer goroutine, so one
// slow client never stalls the publisher or its peers. When an outbox is
// full the frame is dropped for that subscriber only; the live feed is a
// best-effort stream, the durable record is the persisted ledger.
package broadcast
