// Package publisher contains experiment.Publisher implementations: sinks that
// record results (logs, Prometheus metrics, memory) and decorators that
// change how a delegate is called (in the background, with retries, fanned
// out to several publishers).
//
// Every constructor is generic over the experiment's value type T and the
// cleaned type C, while options are plain functions so they can be shared
// between publishers of different types.
package publisher
