// Package audit implements async event dispatching for security-relevant operations.
//
// [Dispatcher] is a buffered relay in front of a [Sink] with drop-if-full or
// block-if-full semantics. It does not decide which events to emit; the
// engine does.
package audit
