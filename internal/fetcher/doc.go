// Package fetcher retrieves OHLCV data from a Databento-style market data
// provider.
//
// Historical implements stage.Fetcher over the provider's HTTP API
// (timeseries.get_range). Stream is the live variant: a reconnecting
// WebSocket consumer that emits bars on a channel.
//
// Stream state machine:
//
//	Disconnected -> Connecting -> Streaming -> Error -> Reconnecting -> Streaming
//	                                                               \-> Disconnected (retries exhausted)
package fetcher
